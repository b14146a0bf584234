package orchestrator

import (
	"context"
	"fmt"
	"os"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/envctl/envctl/internal/environment"
	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/kubernetes"
	"github.com/envctl/envctl/internal/manifest"
	"github.com/envctl/envctl/internal/output"
)

// Infrastructure and namespace statuses reported by provision and teardown.
const (
	StatusApplied   = "applied"
	StatusDestroyed = "destroyed"
	StatusAbsent    = "absent"
)

// ListEnvironments returns every registered environment.
func (o *Orchestrator) ListEnvironments() Environments {
	envs := o.registry.List()
	out := make(Environments, 0, len(envs))
	for _, env := range envs {
		out = append(out, summarize(env))
	}
	return out
}

// GetEnvironment returns the named environment and its components.
func (o *Orchestrator) GetEnvironment(name string) (*EnvironmentSummary, error) {
	env, err := o.environment(name)
	if err != nil {
		return nil, err
	}
	s := summarize(env)
	return &s, nil
}

// ListComponents returns the components of an environment, optionally
// restricted to one kind.
func (o *Orchestrator) ListComponents(name, kind string) (Components, error) {
	env, err := o.environment(name)
	if err != nil {
		return nil, err
	}
	all := summarize(env).Components
	if kind == "" {
		return all, nil
	}
	if k := environment.Kind(kind); k != environment.KindWorkload && k != environment.KindInfrastructure {
		return nil, oerrors.NewValidationError(
			fmt.Sprintf("unknown component kind %q", kind), "", "kind",
			fmt.Sprintf("use %q or %q", environment.KindWorkload, environment.KindInfrastructure))
	}

	out := Components{}
	for _, c := range all {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out, nil
}

// Reload rescans the environments directory.
func (o *Orchestrator) Reload() (Environments, error) {
	if err := o.registry.Reload(); err != nil {
		return nil, err
	}
	return o.ListEnvironments(), nil
}

// SkeletonVersions syncs the skeletons when configured and lists the local versions.
func (o *Orchestrator) SkeletonVersions(ctx context.Context) (Versions, error) {
	if o.skeletons == nil {
		return Versions{}, nil
	}
	if err := o.sync(ctx); err != nil {
		return nil, err
	}
	versions, err := o.skeletons.Versions()
	if err != nil {
		return nil, err
	}
	return Versions(versions), nil
}

func (o *Orchestrator) sync(ctx context.Context) error {
	if o.skeletons == nil || !o.syncSkeletons {
		return nil
	}
	if err := o.skeletons.Sync(ctx); err != nil {
		return fmt.Errorf("syncing skeletons: %w", err)
	}
	return nil
}

// CreateEnvironment materializes a new environment from a skeleton version.
func (o *Orchestrator) CreateEnvironment(ctx context.Context, name, version string) (*EnvironmentSummary, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if _, ok := o.registry.Get(name); ok {
		return nil, oerrors.NewAlreadyExistsError(
			fmt.Sprintf("environment %q already exists", name),
			o.materializer.Dir(name),
			"use refresh to move it to another version")
	}
	if err := o.sync(ctx); err != nil {
		return nil, err
	}

	log := output.EnvLogger(name)
	log.Info("creating environment", "version", version)

	env, err := o.materializer.Create(ctx, name, version)
	if err != nil {
		return nil, err
	}
	o.registry.Put(env)

	log.Info("environment created", "components", len(env.Components()))
	s := summarize(env)
	return &s, nil
}

// ProvisionEnvironment applies the infrastructure of an environment, creates
// its namespace and deploys its workloads. DNS endpoints are created on a
// best-effort basis.
func (o *Orchestrator) ProvisionEnvironment(ctx context.Context, name string) (*ProvisionReport, error) {
	env, err := o.environment(name)
	if err != nil {
		return nil, err
	}
	cp, err := o.controlPlane()
	if err != nil {
		return nil, err
	}
	log := output.EnvLogger(name)
	report := &ProvisionReport{
		Environment:    name,
		Infrastructure: output.StatusSkipped,
		Resources:      []ResourceStatus{},
		Endpoints:      Endpoints{},
	}

	if env.HasInfrastructure() {
		infra, err := o.infra()
		if err != nil {
			return nil, err
		}
		log.Info("applying infrastructure")
		if err := infra.Apply(ctx, env.Dir()); err != nil {
			return nil, fmt.Errorf("applying infrastructure of %s: %w", name, err)
		}
		report.Infrastructure = StatusApplied
	}

	report.Namespace, err = cp.CreateNamespace(ctx, name, env.Version())
	if err != nil {
		return nil, err
	}
	log.Info("namespace ready", "status", report.Namespace)

	for _, path := range o.initManifests {
		statuses, err := o.applyFile(ctx, cp, path, name)
		if err != nil {
			return nil, err
		}
		report.Resources = append(report.Resources, statuses...)
	}

	for _, comp := range env.Components(environment.KindWorkload) {
		obj, err := workloadObject(comp)
		if err != nil {
			return nil, err
		}
		status, err := cp.Apply(ctx, obj, name)
		if err != nil {
			return nil, fmt.Errorf("applying component %q: %w", comp.Name(), err)
		}
		output.Println(output.FormatComponentLine(name, comp.Name(), status))
		report.Resources = append(report.Resources, ResourceStatus{Kind: obj.GetKind(), Name: obj.GetName(), Status: status})
	}

	if o.zone != nil {
		endpoints, err := o.createEndpoints(ctx, cp, env)
		if err != nil {
			log.Warn("creating endpoints failed", "err", err)
		}
		report.Endpoints = endpoints
	}

	log.Info("environment provisioned")
	return report, nil
}

// applyFile applies every document of an init manifest into ns, ordered by
// kind weight.
func (o *Orchestrator) applyFile(ctx context.Context, cp ControlPlane, path, ns string) ([]ResourceStatus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading init manifest: %w", err)
	}
	docs, err := manifest.DecodeAll(data)
	if err != nil {
		return nil, fmt.Errorf("init manifest %s: %w", path, err)
	}

	objs := make([]*unstructured.Unstructured, 0, len(docs))
	for _, doc := range docs {
		obj, err := doc.Unstructured()
		if err != nil {
			return nil, fmt.Errorf("init manifest %s: %w", path, err)
		}
		objs = append(objs, obj)
	}
	kubernetes.SortForApply(objs)

	statuses := make([]ResourceStatus, 0, len(objs))
	for _, obj := range objs {
		status, err := cp.Apply(ctx, obj, ns)
		if err != nil {
			return nil, fmt.Errorf("applying %s %s from %s: %w", obj.GetKind(), obj.GetName(), path, err)
		}
		statuses = append(statuses, ResourceStatus{Kind: obj.GetKind(), Name: obj.GetName(), Status: status})
	}
	return statuses, nil
}

// RefreshEnvironment re-materializes an environment from a skeleton version,
// keeping the image tags of workloads whose image is unchanged. An empty
// version refreshes from the current one.
func (o *Orchestrator) RefreshEnvironment(ctx context.Context, name, version string) (*environment.RefreshReport, error) {
	env, err := o.environment(name)
	if err != nil {
		return nil, err
	}
	if err := o.sync(ctx); err != nil {
		return nil, err
	}

	log := output.EnvLogger(name)
	log.Info("refreshing environment", "from", env.Version(), "to", version)

	refreshed, report, err := o.materializer.Refresh(ctx, env, version)
	if err != nil {
		return nil, err
	}
	o.registry.Put(refreshed)

	log.Info("environment refreshed",
		"restored", len(report.Restored), "skipped", len(report.Skipped), "dropped", len(report.Dropped))
	return report, nil
}

// DiffEnvironment shows what RefreshEnvironment would change.
func (o *Orchestrator) DiffEnvironment(ctx context.Context, name, version string) (*environment.Preview, error) {
	env, err := o.environment(name)
	if err != nil {
		return nil, err
	}
	if err := o.sync(ctx); err != nil {
		return nil, err
	}
	return o.materializer.Preview(ctx, env, version)
}

// TeardownEnvironment deletes the namespace, destroys the infrastructure and
// removes the DNS endpoints of an environment. The local directory is kept so
// the environment can be provisioned again.
func (o *Orchestrator) TeardownEnvironment(ctx context.Context, name string) (*TeardownReport, error) {
	env, err := o.environment(name)
	if err != nil {
		return nil, err
	}
	log := output.EnvLogger(name)
	report := &TeardownReport{
		Environment:    name,
		Namespace:      output.StatusFailed,
		Infrastructure: output.StatusSkipped,
		Endpoints:      Endpoints{},
	}

	if cp, err := o.controlPlane(); err != nil {
		log.Warn("skipping namespace deletion", "err", err)
	} else {
		deleted, err := cp.DeleteNamespace(ctx, name)
		switch {
		case err != nil:
			log.Warn("deleting namespace failed", "err", err)
		case deleted:
			report.Namespace = output.StatusDeleted
		default:
			report.Namespace = StatusAbsent
		}
	}

	if env.HasInfrastructure() {
		infra, err := o.infra()
		if err != nil {
			return nil, err
		}
		log.Info("destroying infrastructure")
		if err := infra.Destroy(ctx, env.Dir()); err != nil {
			return nil, fmt.Errorf("destroying infrastructure of %s: %w", name, err)
		}
		report.Infrastructure = StatusDestroyed
	}

	if o.zone != nil {
		removed, err := o.removeEndpoints(ctx, name)
		if err != nil {
			log.Warn("removing endpoints failed", "err", err)
		}
		report.Endpoints = removed
	}

	log.Info("environment torn down")
	return report, nil
}

// RunTerraform runs an arbitrary terraform subcommand in the environment directory.
func (o *Orchestrator) RunTerraform(ctx context.Context, name string, args []string) error {
	env, err := o.environment(name)
	if err != nil {
		return err
	}
	infra, err := o.infra()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return oerrors.NewValidationError("no terraform arguments given", "", "args", "e.g. envctl tf staging plan")
	}
	return infra.Run(ctx, env.Dir(), args...)
}

// ClusterEnvironments lists the environment namespaces that exist in the cluster.
func (o *Orchestrator) ClusterEnvironments(ctx context.Context) (ClusterEnvironments, error) {
	cp, err := o.controlPlane()
	if err != nil {
		return nil, err
	}
	namespaces, err := cp.ListEnvironmentNamespaces(ctx)
	if err != nil {
		return nil, err
	}
	return ClusterEnvironments(namespaces), nil
}
