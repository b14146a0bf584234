// Package orchestrator composes environment state with the control plane,
// infrastructure tooling, DNS and notifications into operator operations.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/envctl/envctl/internal/dns"
	"github.com/envctl/envctl/internal/environment"
	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/kubernetes"
	"github.com/envctl/envctl/internal/notify"
	"github.com/envctl/envctl/internal/task"
)

// ControlPlane is the container-orchestration API environments are deployed to.
type ControlPlane interface {
	CreateNamespace(ctx context.Context, name, version string) (string, error)
	DeleteNamespace(ctx context.Context, name string) (bool, error)
	ListEnvironmentNamespaces(ctx context.Context) ([]kubernetes.NamespaceInfo, error)

	Apply(ctx context.Context, obj *unstructured.Unstructured, ns string) (string, error)
	Create(ctx context.Context, obj *unstructured.Unstructured, ns string) error
	Delete(ctx context.Context, obj *unstructured.Unstructured, ns string) (bool, error)
	RollingUpdate(ctx context.Context, obj *unstructured.Unstructured, ns string, opts kubernetes.RolloutOptions) (*kubernetes.RolloutResult, error)

	NewestPod(ctx context.Context, ns, app string) (*kubernetes.PodInfo, error)
	Logs(ctx context.Context, ns, pod string, tail int64) (string, error)
	LoadBalancerTargets(ctx context.Context, ns string) (map[string]string, error)
}

// Infrastructure provisions the non-workload resources of an environment.
// Every call runs in the environment directory.
type Infrastructure interface {
	Apply(ctx context.Context, dir string) error
	Destroy(ctx context.Context, dir string) error
	Run(ctx context.Context, dir string, args ...string) error
	Endpoints(ctx context.Context, dir string) (map[string]string, error)
}

// SkeletonSource keeps the local skeleton versions up to date.
type SkeletonSource interface {
	Sync(ctx context.Context) error
	Versions() ([]string, error)
}

// Connector returns a control plane, connecting on first use.
type Connector func() (ControlPlane, error)

// Static returns a Connector for an already connected control plane.
func Static(cp ControlPlane) Connector {
	return func() (ControlPlane, error) { return cp, nil }
}

// Options configures an Orchestrator.
type Options struct {
	Registry     *environment.Registry
	Materializer *environment.Materializer

	// Skeletons is synced before create and refresh when SyncSkeletons is set.
	Skeletons     SkeletonSource
	SyncSkeletons bool

	ControlPlane   Connector
	Infrastructure Infrastructure

	// Zone is nil when DNS is not configured.
	Zone     dns.Zone
	Notifier notify.Sink
	Tasks    *task.Queue

	// InitManifests are applied to every environment namespace on provision.
	InitManifests []string
	Rollout       kubernetes.RolloutOptions
}

// Orchestrator implements the operator operations.
type Orchestrator struct {
	registry     *environment.Registry
	materializer *environment.Materializer

	skeletons     SkeletonSource
	syncSkeletons bool

	connect        Connector
	infrastructure Infrastructure
	zone           dns.Zone
	notifier       notify.Sink
	tasks          *task.Queue

	initManifests []string
	rollout       kubernetes.RolloutOptions

	mu sync.Mutex
	cp ControlPlane
}

// New creates an Orchestrator. A nil Tasks queue gets a queue on
// context.Background.
func New(opts Options) *Orchestrator {
	tasks := opts.Tasks
	if tasks == nil {
		tasks = task.NewQueue(context.Background())
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Orchestrator{
		registry:       opts.Registry,
		materializer:   opts.Materializer,
		skeletons:      opts.Skeletons,
		syncSkeletons:  opts.SyncSkeletons,
		connect:        opts.ControlPlane,
		infrastructure: opts.Infrastructure,
		zone:           opts.Zone,
		notifier:       notifier,
		tasks:          tasks,
		initManifests:  opts.InitManifests,
		rollout:        opts.Rollout,
	}
}

// Tasks returns the queue background operations are submitted to.
func (o *Orchestrator) Tasks() *task.Queue { return o.tasks }

// controlPlane connects on first use. A failed connection is retried on the
// next call.
func (o *Orchestrator) controlPlane() (ControlPlane, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cp != nil {
		return o.cp, nil
	}
	if o.connect == nil {
		return nil, oerrors.Wrap(oerrors.ErrConnectivity, "no control plane configured")
	}
	cp, err := o.connect()
	if err != nil {
		return nil, err
	}
	o.cp = cp
	return cp, nil
}

func (o *Orchestrator) infra() (Infrastructure, error) {
	if o.infrastructure == nil {
		return nil, oerrors.Wrap(oerrors.ErrValidation, "no infrastructure tool configured")
	}
	return o.infrastructure, nil
}

func (o *Orchestrator) dnsZone() (dns.Zone, error) {
	if o.zone == nil {
		return nil, oerrors.NewValidationError(
			"DNS is not configured", "", "dns.zone",
			"set dns.provider and dns.zone in the config file")
	}
	return o.zone, nil
}

func (o *Orchestrator) environment(name string) (*environment.Environment, error) {
	env, ok := o.registry.Get(name)
	if !ok {
		return nil, oerrors.Wrapf(oerrors.ErrNotFound, "environment %q", name)
	}
	return env, nil
}

func (o *Orchestrator) component(envName, name string) (*environment.Environment, *environment.Component, error) {
	env, err := o.environment(envName)
	if err != nil {
		return nil, nil, err
	}
	comp, ok := env.Component(name)
	if !ok {
		return nil, nil, oerrors.Wrapf(oerrors.ErrNotFound, "component %q in environment %q", name, envName)
	}
	return env, comp, nil
}

// workloadObject decodes a workload component for the control plane.
func workloadObject(comp *environment.Component) (*unstructured.Unstructured, error) {
	doc, err := comp.Document()
	if err != nil {
		return nil, fmt.Errorf("component %q: %w", comp.Name(), err)
	}
	obj, err := doc.Unstructured()
	if err != nil {
		return nil, fmt.Errorf("component %q: %w", comp.Name(), err)
	}
	return obj, nil
}

// ValidateName checks that name can serve as a directory and namespace name.
func ValidateName(name string) error {
	if errs := validation.IsDNS1123Label(name); len(errs) > 0 {
		return oerrors.NewValidationError(
			fmt.Sprintf("invalid environment name %q: %s", name, strings.Join(errs, "; ")),
			"", "name",
			"use lower case alphanumeric characters or '-', starting and ending with an alphanumeric character")
	}
	return nil
}
