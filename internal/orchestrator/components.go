package orchestrator

import (
	"context"
	"fmt"

	"github.com/envctl/envctl/internal/environment"
	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/notify"
	"github.com/envctl/envctl/internal/output"
	"github.com/envctl/envctl/internal/task"
)

// ComponentImage returns the image reference of a workload component.
func (o *Orchestrator) ComponentImage(envName, name string) (*ImageInfo, error) {
	_, comp, err := o.component(envName, name)
	if err != nil {
		return nil, err
	}
	if !comp.IsWorkload() {
		return nil, fmt.Errorf("component %q: %w", name, oerrors.ErrNotWorkload)
	}
	ref, ok, err := comp.Image()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, oerrors.Wrapf(oerrors.ErrNotFound, "image of component %q", name)
	}
	return &ImageInfo{
		Environment: envName,
		Component:   name,
		Image:       ref.String(),
		Basename:    ref.Name,
		Tag:         ref.Tag,
	}, nil
}

// UpdateComponent sets the image tag of a workload and submits a rolling
// update of its live resource. Validation and the local edit happen before
// it returns; the rollout runs on the returned task.
func (o *Orchestrator) UpdateComponent(ctx context.Context, envName, name, tag string) (*task.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tag == "" {
		return nil, oerrors.ErrInvalidTag
	}
	env, comp, err := o.component(envName, name)
	if err != nil {
		return nil, err
	}
	if !comp.IsWorkload() {
		return nil, fmt.Errorf("component %q: %w", name, oerrors.ErrNotWorkload)
	}
	cp, err := o.controlPlane()
	if err != nil {
		return nil, err
	}

	oldTag, _, err := comp.ImageTag()
	if err != nil {
		return nil, err
	}
	if err := comp.SetImageTag(tag); err != nil {
		return nil, err
	}
	obj, err := workloadObject(comp)
	if err != nil {
		return nil, err
	}
	output.EnvLogger(env.Name()).Info("image tag set", "component", name, "from", oldTag, "to", tag)

	rollout := o.rollout
	ns := env.Name()
	return o.tasks.Submit(fmt.Sprintf("update %s/%s to %s", ns, name, tag), func(ctx context.Context) (any, error) {
		return cp.RollingUpdate(ctx, obj, ns, rollout)
	}), nil
}

// RecreateComponent submits a task that deletes the live resource of a
// workload and creates it again from the local specification. A failed
// delete is tolerated.
func (o *Orchestrator) RecreateComponent(ctx context.Context, envName, name string) (*task.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env, comp, err := o.component(envName, name)
	if err != nil {
		return nil, err
	}
	if !comp.IsWorkload() {
		return nil, fmt.Errorf("component %q: %w", name, oerrors.ErrNotWorkload)
	}
	cp, err := o.controlPlane()
	if err != nil {
		return nil, err
	}
	obj, err := workloadObject(comp)
	if err != nil {
		return nil, err
	}

	ns := env.Name()
	log := output.EnvLogger(ns)
	return o.tasks.Submit(fmt.Sprintf("recreate %s/%s", ns, name), func(ctx context.Context) (any, error) {
		if _, err := cp.Delete(ctx, obj, ns); err != nil {
			log.Warn("deleting component failed, creating anyway", "component", name, "err", err)
		}
		if err := cp.Create(ctx, obj, ns); err != nil {
			return nil, fmt.Errorf("creating component %q: %w", name, err)
		}
		log.Info("component recreated", "component", name)
		return ResourceStatus{Kind: obj.GetKind(), Name: obj.GetName(), Status: output.StatusCreated}, nil
	}), nil
}

// BulkUpdateImage updates every workload, in every environment, whose image
// basename is image. Failures are reported per component and the outcome is
// posted to the notification sink.
func (o *Orchestrator) BulkUpdateImage(ctx context.Context, image, tag string) (*BulkUpdateReport, error) {
	if tag == "" {
		return nil, oerrors.ErrInvalidTag
	}
	if image == "" {
		return nil, oerrors.NewValidationError("no image given", "", "image", "pass the image without its tag, e.g. registry.example.com/api")
	}

	report := &BulkUpdateReport{Image: image, Tag: tag, Updated: []BulkUpdateItem{}, Failed: []BulkUpdateItem{}}
	for _, env := range o.registry.List() {
		for _, comp := range env.Components(environment.KindWorkload) {
			basename, ok, err := comp.ImageBasename()
			if err != nil || !ok || basename != image {
				continue
			}
			item := BulkUpdateItem{Environment: env.Name(), Component: comp.Name()}
			h, err := o.UpdateComponent(ctx, env.Name(), comp.Name(), tag)
			if err != nil {
				item.Error = err.Error()
				report.Failed = append(report.Failed, item)
				continue
			}
			item.Task = h.ID()
			report.Updated = append(report.Updated, item)
		}
	}

	if len(report.Updated)+len(report.Failed) > 0 {
		notify.Send(ctx, o.notifier, bulkUpdateMessage(report))
	}
	return report, nil
}

func bulkUpdateMessage(r *BulkUpdateReport) string {
	msg := fmt.Sprintf("%s updated to %s in %d component(s)", r.Image, r.Tag, len(r.Updated))
	for _, u := range r.Updated {
		msg += fmt.Sprintf("\n- %s/%s", u.Environment, u.Component)
	}
	if len(r.Failed) > 0 {
		msg += fmt.Sprintf("\n%d failed:", len(r.Failed))
		for _, f := range r.Failed {
			msg += fmt.Sprintf("\n- %s/%s: %s", f.Environment, f.Component, f.Error)
		}
	}
	return msg
}

// ComponentStatus returns the newest pod serving a component.
func (o *Orchestrator) ComponentStatus(ctx context.Context, envName, name string) (*ComponentStatus, error) {
	if _, _, err := o.component(envName, name); err != nil {
		return nil, err
	}
	cp, err := o.controlPlane()
	if err != nil {
		return nil, err
	}
	pod, err := cp.NewestPod(ctx, envName, name)
	if err != nil {
		return nil, err
	}
	return &ComponentStatus{Environment: envName, Component: name, PodInfo: *pod}, nil
}

// ComponentLogs returns the last tail log lines of the newest pod of a
// component. A tail of zero returns the whole log.
func (o *Orchestrator) ComponentLogs(ctx context.Context, envName, name string, tail int64) (string, error) {
	if _, _, err := o.component(envName, name); err != nil {
		return "", err
	}
	cp, err := o.controlPlane()
	if err != nil {
		return "", err
	}
	pod, err := cp.NewestPod(ctx, envName, name)
	if err != nil {
		return "", err
	}
	return cp.Logs(ctx, envName, pod.Name, tail)
}

// Task returns a snapshot of a submitted task.
func (o *Orchestrator) Task(id string) (*task.Info, error) {
	h, err := o.tasks.Get(id)
	if err != nil {
		return nil, err
	}
	info := h.Info()
	return &info, nil
}

// ListTasks returns snapshots of every submitted task.
func (o *Orchestrator) ListTasks() task.Infos {
	return o.tasks.List()
}
