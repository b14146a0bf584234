package orchestrator

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/envctl/envctl/internal/dns"
	"github.com/envctl/envctl/internal/environment"
	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/kubernetes"
	"github.com/envctl/envctl/internal/output"
	"github.com/envctl/envctl/internal/task"
	"github.com/envctl/envctl/internal/testutil"
)

var errNoPod = oerrors.Wrap(oerrors.ErrNotFound, "pod")

type appliedObject struct {
	Namespace string
	Kind      string
	Name      string
	Image     string
}

func describe(obj *unstructured.Unstructured, ns string) appliedObject {
	a := appliedObject{Namespace: ns, Kind: obj.GetKind(), Name: obj.GetName()}
	containers, _, _ := unstructured.NestedSlice(obj.Object, "spec", "template", "spec", "containers")
	if len(containers) > 0 {
		if c, ok := containers[0].(map[string]any); ok {
			a.Image, _ = c["image"].(string)
		}
	}
	return a
}

type fakeControlPlane struct {
	mu sync.Mutex

	namespaces   map[string]string
	applied      []appliedObject
	created      []appliedObject
	deleted      []appliedObject
	rolled       []appliedObject
	lbTargets    map[string]string
	pods         map[string]*kubernetes.PodInfo
	logs         map[string]string
	clusterEnvs  []kubernetes.NamespaceInfo
	deleteNSErr  error
	deleteErr    error
	createErr    error
	applyErr     error
	rolloutDelay chan struct{}
}

func newFakeControlPlane() *fakeControlPlane {
	return &fakeControlPlane{
		namespaces: map[string]string{},
		lbTargets:  map[string]string{},
		pods:       map[string]*kubernetes.PodInfo{},
		logs:       map[string]string{},
	}
}

func (f *fakeControlPlane) CreateNamespace(_ context.Context, name, version string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := output.StatusCreated
	if _, ok := f.namespaces[name]; ok {
		status = output.StatusConfigured
	}
	f.namespaces[name] = version
	return status, nil
}

func (f *fakeControlPlane) DeleteNamespace(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteNSErr != nil {
		return false, f.deleteNSErr
	}
	_, ok := f.namespaces[name]
	delete(f.namespaces, name)
	return ok, nil
}

func (f *fakeControlPlane) ListEnvironmentNamespaces(context.Context) ([]kubernetes.NamespaceInfo, error) {
	return f.clusterEnvs, nil
}

func (f *fakeControlPlane) Apply(_ context.Context, obj *unstructured.Unstructured, ns string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return "", f.applyErr
	}
	f.applied = append(f.applied, describe(obj, ns))
	return output.StatusCreated, nil
}

func (f *fakeControlPlane) Create(_ context.Context, obj *unstructured.Unstructured, ns string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, describe(obj, ns))
	return nil
}

func (f *fakeControlPlane) Delete(_ context.Context, obj *unstructured.Unstructured, ns string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, describe(obj, ns))
	return f.deleteErr == nil, f.deleteErr
}

func (f *fakeControlPlane) RollingUpdate(ctx context.Context, obj *unstructured.Unstructured, ns string, _ kubernetes.RolloutOptions) (*kubernetes.RolloutResult, error) {
	if f.rolloutDelay != nil {
		select {
		case <-f.rolloutDelay:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rolled = append(f.rolled, describe(obj, ns))
	return &kubernetes.RolloutResult{Status: output.StatusConfigured, Replaced: []string{obj.GetName() + "-abcde"}}, nil
}

func (f *fakeControlPlane) NewestPod(_ context.Context, ns, app string) (*kubernetes.PodInfo, error) {
	pod, ok := f.pods[ns+"/"+app]
	if !ok {
		return nil, errNoPod
	}
	return pod, nil
}

func (f *fakeControlPlane) Logs(_ context.Context, ns, pod string, tail int64) (string, error) {
	return f.logs[ns+"/"+pod], nil
}

func (f *fakeControlPlane) LoadBalancerTargets(context.Context, string) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range f.lbTargets {
		out[k] = v
	}
	return out, nil
}

func (f *fakeControlPlane) snapshot() (applied, created, deleted, rolled []appliedObject) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]appliedObject(nil), f.applied...),
		append([]appliedObject(nil), f.created...),
		append([]appliedObject(nil), f.deleted...),
		append([]appliedObject(nil), f.rolled...)
}

type fakeInfra struct {
	applied    []string
	destroyed  []string
	runs       [][]string
	endpoints  map[string]string
	applyErr   error
	destroyErr error
}

func (f *fakeInfra) Apply(_ context.Context, dir string) error {
	f.applied = append(f.applied, dir)
	return f.applyErr
}

func (f *fakeInfra) Destroy(_ context.Context, dir string) error {
	f.destroyed = append(f.destroyed, dir)
	return f.destroyErr
}

func (f *fakeInfra) Run(_ context.Context, dir string, args ...string) error {
	f.runs = append(f.runs, append([]string{dir}, args...))
	return nil
}

func (f *fakeInfra) Endpoints(context.Context, string) (map[string]string, error) {
	return f.endpoints, nil
}

type fakeSkeletons struct {
	syncs    int
	versions []string
	err      error
}

func (f *fakeSkeletons) Sync(context.Context) error {
	f.syncs++
	return f.err
}

func (f *fakeSkeletons) Versions() ([]string, error) { return f.versions, nil }

type recordingSink struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingSink) Post(_ context.Context, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

// fixture wires an Orchestrator to fakes over a temporary workspace holding
// skeleton v1 (api workload, net infrastructure) and v2 (api workload only,
// same image basename).
type fixture struct {
	ws        *testutil.Workspace
	cp        *fakeControlPlane
	infra     *fakeInfra
	skeletons *fakeSkeletons
	zone      *dns.Memory
	sink      *recordingSink
	o         *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ws := testutil.NewWorkspace(t)
	ws.Skeleton(t, "v1", map[string]string{
		"api.yaml": testutil.WorkloadSpec("api", "registry/api:v1"),
		"net.tf":   testutil.InfraSpec("net"),
	})
	ws.Skeleton(t, "v2", map[string]string{
		"api.yaml": testutil.WorkloadSpec("api", "registry/api:v1"),
	})

	registry, err := environment.NewRegistry(ws.EnvironmentsDir)
	require.NoError(t, err)

	f := &fixture{
		ws:        ws,
		cp:        newFakeControlPlane(),
		infra:     &fakeInfra{endpoints: map[string]string{}},
		skeletons: &fakeSkeletons{versions: []string{"v1", "v2"}},
		zone:      dns.NewMemory("example.com"),
		sink:      &recordingSink{},
	}
	f.o = New(Options{
		Registry:       registry,
		Materializer:   &environment.Materializer{SkeletonsDir: ws.SkeletonsDir, EnvironmentsDir: ws.EnvironmentsDir},
		Skeletons:      f.skeletons,
		SyncSkeletons:  true,
		ControlPlane:   Static(f.cp),
		Infrastructure: f.infra,
		Zone:           f.zone,
		Notifier:       f.sink,
		Tasks:          task.NewQueue(context.Background()),
	})
	return f
}

// create materializes name from skeleton v1.
func (f *fixture) create(t *testing.T, name string) {
	t.Helper()
	_, err := f.o.CreateEnvironment(context.Background(), name, "v1")
	require.NoError(t, err)
}

func (f *fixture) componentFile(name, component string) string {
	return filepath.Join(f.ws.EnvDir(name), component+".yaml")
}
