package dns

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/digitalocean/godo"

	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/output"
)

// DigitalOcean is a zone hosted on DigitalOcean DNS.
type DigitalOcean struct {
	client *godo.Client
	domain string
	ttl    int
}

// NewDigitalOcean returns the DigitalOcean zone for domain.
func NewDigitalOcean(token, domain string, ttl int) *DigitalOcean {
	return NewDigitalOceanWithClient(godo.NewFromToken(token), domain, ttl)
}

// NewDigitalOceanWithClient uses an existing godo client.
func NewDigitalOceanWithClient(client *godo.Client, domain string, ttl int) *DigitalOcean {
	return &DigitalOcean{client: client, domain: domain, ttl: ttl}
}

// Domain implements Zone.
func (d *DigitalOcean) Domain() string { return d.domain }

// CreateRecord implements Zone.
func (d *DigitalOcean) CreateRecord(ctx context.Context, rec Record) error {
	if _, err := d.DeleteRecord(ctx, rec.Name); err != nil {
		return err
	}

	data := rec.Target
	if rec.Type == TypeCNAME && !strings.HasSuffix(data, ".") {
		data += "."
	}
	req := &godo.DomainRecordEditRequest{
		Type: rec.Type,
		Name: rec.Name,
		Data: data,
		TTL:  d.ttl,
	}
	created, _, err := d.client.Domains.CreateRecord(ctx, d.domain, req)
	if err != nil {
		return fmt.Errorf("creating record %s: %w", rec.Name, oerrors.Wrap(oerrors.ErrConnectivity, err.Error()))
	}
	output.Debug("created DNS record", "zone", d.domain, "name", rec.Name, "type", rec.Type, "id", created.ID)
	return nil
}

// DeleteRecord implements Zone.
func (d *DigitalOcean) DeleteRecord(ctx context.Context, name string) (int, error) {
	records, err := d.records(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, r := range records {
		if r.Name != name {
			continue
		}
		if _, err := d.client.Domains.DeleteRecord(ctx, d.domain, r.ID); err != nil {
			return deleted, fmt.Errorf("deleting record %s: %w", name, oerrors.Wrap(oerrors.ErrConnectivity, err.Error()))
		}
		deleted++
	}
	return deleted, nil
}

// ListRecords implements Zone. Only A and CNAME records are returned.
func (d *DigitalOcean) ListRecords(ctx context.Context) ([]Record, error) {
	records, err := d.records(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Type != TypeA && r.Type != TypeCNAME {
			continue
		}
		out = append(out, Record{Name: r.Name, Type: r.Type, Target: strings.TrimSuffix(r.Data, ".")})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// records pages through every record of the zone.
func (d *DigitalOcean) records(ctx context.Context) ([]godo.DomainRecord, error) {
	var all []godo.DomainRecord
	opt := &godo.ListOptions{PerPage: 200}
	for {
		page, resp, err := d.client.Domains.Records(ctx, d.domain, opt)
		if err != nil {
			return nil, fmt.Errorf("listing records of %s: %w", d.domain, oerrors.Wrap(oerrors.ErrConnectivity, err.Error()))
		}
		all = append(all, page...)

		if resp == nil || resp.Links == nil || resp.Links.IsLastPage() {
			return all, nil
		}
		current, err := resp.Links.CurrentPage()
		if err != nil {
			return nil, fmt.Errorf("listing records of %s: %w", d.domain, err)
		}
		opt.Page = current + 1
	}
}
