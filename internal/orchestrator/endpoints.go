package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"github.com/envctl/envctl/internal/dns"
	"github.com/envctl/envctl/internal/environment"
	"github.com/envctl/envctl/internal/output"
)

// CreateEndpoints publishes a DNS record for every LoadBalancer service of
// the environment and every entry of its infrastructure "endpoints" output.
func (o *Orchestrator) CreateEndpoints(ctx context.Context, name string) (Endpoints, error) {
	env, err := o.environment(name)
	if err != nil {
		return nil, err
	}
	if _, err := o.dnsZone(); err != nil {
		return nil, err
	}
	cp, err := o.controlPlane()
	if err != nil {
		return nil, err
	}
	return o.createEndpoints(ctx, cp, env)
}

func (o *Orchestrator) createEndpoints(ctx context.Context, cp ControlPlane, env *environment.Environment) (Endpoints, error) {
	targets, err := o.endpointTargets(ctx, cp, env)
	if err != nil {
		return Endpoints{}, err
	}

	names := make([]string, 0, len(targets))
	for n := range targets {
		names = append(names, n)
	}
	sort.Strings(names)

	log := output.EnvLogger(env.Name())
	created := Endpoints{}
	for _, n := range names {
		rec := dns.RecordFor(dns.EndpointName(n, env.Name()), targets[n])
		if err := o.zone.CreateRecord(ctx, rec); err != nil {
			return created, fmt.Errorf("creating endpoint %s: %w", n, err)
		}
		ep := endpointFor(o.zone, rec)
		log.Info("endpoint created", "name", ep.FQDN, "type", ep.Type, "target", ep.Target)
		created = append(created, ep)
	}
	return created, nil
}

// endpointTargets merges service addresses with infrastructure outputs. An
// infrastructure output wins over a service of the same name.
func (o *Orchestrator) endpointTargets(ctx context.Context, cp ControlPlane, env *environment.Environment) (map[string]string, error) {
	targets, err := cp.LoadBalancerTargets(ctx, env.Name())
	if err != nil {
		return nil, err
	}
	if targets == nil {
		targets = map[string]string{}
	}
	if !env.HasInfrastructure() || o.infrastructure == nil {
		return targets, nil
	}

	outputs, err := o.infrastructure.Endpoints(ctx, env.Dir())
	if err != nil {
		return nil, fmt.Errorf("reading infrastructure endpoints: %w", err)
	}
	for n, target := range outputs {
		targets[n] = target
	}
	return targets, nil
}

// ListEndpoints returns the DNS records published for an environment.
func (o *Orchestrator) ListEndpoints(ctx context.Context, name string) (Endpoints, error) {
	if _, err := o.environment(name); err != nil {
		return nil, err
	}
	zone, err := o.dnsZone()
	if err != nil {
		return nil, err
	}
	return o.listEndpoints(ctx, zone, name)
}

func (o *Orchestrator) listEndpoints(ctx context.Context, zone dns.Zone, name string) (Endpoints, error) {
	records, err := zone.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	out := Endpoints{}
	for _, rec := range records {
		if dns.InEnvironment(rec.Name, name) {
			out = append(out, endpointFor(zone, rec))
		}
	}
	return out, nil
}

// RemoveEndpoints deletes every DNS record published for an environment.
func (o *Orchestrator) RemoveEndpoints(ctx context.Context, name string) (Endpoints, error) {
	if _, err := o.environment(name); err != nil {
		return nil, err
	}
	if _, err := o.dnsZone(); err != nil {
		return nil, err
	}
	return o.removeEndpoints(ctx, name)
}

func (o *Orchestrator) removeEndpoints(ctx context.Context, name string) (Endpoints, error) {
	existing, err := o.listEndpoints(ctx, o.zone, name)
	if err != nil {
		return Endpoints{}, err
	}

	log := output.EnvLogger(name)
	removed := Endpoints{}
	for _, ep := range existing {
		if _, err := o.zone.DeleteRecord(ctx, ep.Name); err != nil {
			return removed, fmt.Errorf("removing endpoint %s: %w", ep.FQDN, err)
		}
		log.Info("endpoint removed", "name", ep.FQDN)
		removed = append(removed, ep)
	}
	return removed, nil
}
