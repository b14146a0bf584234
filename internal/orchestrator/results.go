package orchestrator

import (
	"strconv"
	"time"

	"github.com/envctl/envctl/internal/dns"
	"github.com/envctl/envctl/internal/environment"
	"github.com/envctl/envctl/internal/kubernetes"
	"github.com/envctl/envctl/internal/output"
)

// ComponentSummary describes one component of an environment.
type ComponentSummary struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	File  string `json:"file"`
	Image string `json:"image,omitempty"`
}

// Components is a list of component summaries.
type Components []ComponentSummary

// Table implements output.Tabular.
func (cs Components) Table() *output.Table {
	t := output.NewTable("COMPONENT", "KIND", "IMAGE", "FILE").Empty("No components found")
	for _, c := range cs {
		t.Row(c.Name, c.Kind, c.Image, c.File)
	}
	return t
}

// EnvironmentSummary describes an environment and its components.
type EnvironmentSummary struct {
	Name       string     `json:"name"`
	Version    string     `json:"version"`
	Dir        string     `json:"dir"`
	Components Components `json:"components"`
}

// Table implements output.Tabular.
func (e *EnvironmentSummary) Table() *output.Table {
	return e.Components.Table()
}

// Environments is a list of environment summaries.
type Environments []EnvironmentSummary

// Table implements output.Tabular.
func (es Environments) Table() *output.Table {
	t := output.NewTable("ENVIRONMENT", "VERSION", "COMPONENTS", "DIR").Empty("No environments found")
	for _, e := range es {
		t.Row(output.StyleNoun.Render(e.Name), e.Version, strconv.Itoa(len(e.Components)), e.Dir)
	}
	return t
}

// summarize reads the image of every workload. Unreadable images are left
// blank rather than failing the listing.
func summarize(env *environment.Environment) EnvironmentSummary {
	comps := env.Components()
	s := EnvironmentSummary{
		Name:       env.Name(),
		Version:    env.Version(),
		Dir:        env.Dir(),
		Components: make(Components, 0, len(comps)),
	}
	for _, c := range comps {
		cs := ComponentSummary{Name: c.Name(), Kind: string(c.Kind()), File: c.File()}
		if image, ok, err := c.ImageName(); err == nil && ok {
			cs.Image = image
		}
		s.Components = append(s.Components, cs)
	}
	return s
}

// ImageInfo is the image reference of a workload component.
type ImageInfo struct {
	Environment string `json:"environment"`
	Component   string `json:"component"`
	Image       string `json:"image"`
	Basename    string `json:"basename"`
	Tag         string `json:"tag"`
}

// Table implements output.Tabular.
func (i *ImageInfo) Table() *output.Table {
	return output.NewTable("ENVIRONMENT", "COMPONENT", "IMAGE", "TAG").
		Row(i.Environment, i.Component, i.Basename, i.Tag)
}

// ResourceStatus is the outcome of applying one resource.
type ResourceStatus struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// ProvisionReport summarizes a provision run.
type ProvisionReport struct {
	Environment    string           `json:"environment"`
	Infrastructure string           `json:"infrastructure"`
	Namespace      string           `json:"namespace"`
	Resources      []ResourceStatus `json:"resources"`
	Endpoints      Endpoints        `json:"endpoints"`
}

// Table implements output.Tabular.
func (r *ProvisionReport) Table() *output.Table {
	t := output.NewTable("KIND", "NAME", "STATUS").StatusColumn(2)
	t.Row("Infrastructure", r.Environment, r.Infrastructure)
	t.Row("Namespace", r.Environment, r.Namespace)
	for _, res := range r.Resources {
		t.Row(res.Kind, res.Name, res.Status)
	}
	for _, ep := range r.Endpoints {
		t.Row("DNSRecord", ep.FQDN, output.StatusCreated)
	}
	return t
}

// TeardownReport summarizes a teardown.
type TeardownReport struct {
	Environment    string    `json:"environment"`
	Namespace      string    `json:"namespace"`
	Infrastructure string    `json:"infrastructure"`
	Endpoints      Endpoints `json:"endpoints"`
}

// Table implements output.Tabular.
func (r *TeardownReport) Table() *output.Table {
	t := output.NewTable("KIND", "NAME", "STATUS").StatusColumn(2)
	t.Row("Namespace", r.Environment, r.Namespace)
	t.Row("Infrastructure", r.Environment, r.Infrastructure)
	for _, ep := range r.Endpoints {
		t.Row("DNSRecord", ep.FQDN, output.StatusDeleted)
	}
	return t
}

// Endpoint is a DNS record published for an environment.
type Endpoint struct {
	Name   string `json:"name"`
	FQDN   string `json:"fqdn"`
	Type   string `json:"type"`
	Target string `json:"target"`
}

// Endpoints is a list of endpoints.
type Endpoints []Endpoint

// Table implements output.Tabular.
func (es Endpoints) Table() *output.Table {
	t := output.NewTable("NAME", "TYPE", "TARGET")
	for _, e := range es {
		t.Row(e.FQDN, e.Type, e.Target)
	}
	return t
}

func endpointFor(z dns.Zone, rec dns.Record) Endpoint {
	return Endpoint{Name: rec.Name, FQDN: dns.FQDN(z, rec.Name), Type: rec.Type, Target: rec.Target}
}

// ComponentStatus is the state of the pod serving a component.
type ComponentStatus struct {
	Environment string `json:"environment"`
	Component   string `json:"component"`
	kubernetes.PodInfo
}

// Table implements output.Tabular.
func (s *ComponentStatus) Table() *output.Table {
	ready := "no"
	if s.Ready {
		ready = "yes"
	}
	return output.NewTable("COMPONENT", "POD", "PHASE", "READY", "RESTARTS", "UPTIME", "IMAGE").
		Row(s.Component, s.Name, s.Phase, ready, strconv.Itoa(int(s.Restarts)), s.Uptime.Round(time.Second).String(), s.Image)
}

// ClusterEnvironments lists the environment namespaces of the cluster.
type ClusterEnvironments []kubernetes.NamespaceInfo

// Table implements output.Tabular.
func (ns ClusterEnvironments) Table() *output.Table {
	t := output.NewTable("NAMESPACE", "VERSION", "PHASE", "AGE")
	now := time.Now()
	for _, n := range ns {
		t.Row(n.Name, n.Version, n.Phase, now.Sub(n.Created).Round(time.Second).String())
	}
	return t
}

// BulkUpdateItem is the outcome of one component in a bulk image update.
type BulkUpdateItem struct {
	Environment string `json:"environment"`
	Component   string `json:"component"`
	Task        string `json:"task,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BulkUpdateReport summarizes a bulk image update.
type BulkUpdateReport struct {
	Image   string           `json:"image"`
	Tag     string           `json:"tag"`
	Updated []BulkUpdateItem `json:"updated"`
	Failed  []BulkUpdateItem `json:"failed"`
}

// Table implements output.Tabular.
func (r *BulkUpdateReport) Table() *output.Table {
	t := output.NewTable("ENVIRONMENT", "COMPONENT", "STATUS", "TASK / ERROR").StatusColumn(2)
	for _, u := range r.Updated {
		t.Row(u.Environment, u.Component, output.StatusConfigured, u.Task)
	}
	for _, f := range r.Failed {
		t.Row(f.Environment, f.Component, output.StatusFailed, f.Error)
	}
	return t
}

// Versions lists the skeleton versions available locally.
type Versions []string

// Table implements output.Tabular.
func (vs Versions) Table() *output.Table {
	t := output.NewTable("VERSION")
	for _, v := range vs {
		t.Row(v)
	}
	return t
}
