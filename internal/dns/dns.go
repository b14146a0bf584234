// Package dns publishes environment endpoints as records in a DNS zone.
package dns

import (
	"context"
	"fmt"
	"net"
	"strings"

	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/output"
)

// Record types written by envctl.
const (
	TypeA     = "A"
	TypeCNAME = "CNAME"
)

// Record is one DNS record. Name is relative to the zone.
type Record struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Target string `json:"target"`
}

// Zone is a DNS zone that envctl can write records to.
type Zone interface {
	// Domain returns the zone apex, e.g. "example.com".
	Domain() string

	// CreateRecord creates rec, replacing any record of the same name.
	CreateRecord(ctx context.Context, rec Record) error

	// DeleteRecord removes every record called name and reports how many
	// were removed.
	DeleteRecord(ctx context.Context, name string) (int, error)

	// ListRecords returns the records of the zone.
	ListRecords(ctx context.Context) ([]Record, error)
}

// Options selects and configures a zone provider.
type Options struct {
	// Provider is "digitalocean" or "memory". It is required; memory zones
	// forget their records when the process exits.
	Provider string

	// Zone is the domain records are created in.
	Zone string

	// Token authenticates against the provider API.
	Token string

	// TTL of created records in seconds. Zero uses the provider default.
	TTL int
}

// New returns the zone selected by opts.
func New(opts Options) (Zone, error) {
	switch strings.ToLower(opts.Provider) {
	case "":
		return nil, oerrors.NewValidationError(fmt.Sprintf("dns.zone %q is set without a DNS provider", opts.Zone), "", "dns.provider",
			"set dns.provider to digitalocean, or to memory for records that only live in this process")
	case "memory":
		output.Warn("DNS records are kept in memory and lost when envctl exits", "zone", opts.Zone)
		return NewMemory(opts.Zone), nil
	case "digitalocean":
		if opts.Token == "" {
			return nil, oerrors.NewValidationError("digitalocean DNS needs an API token", "", "dns.token",
				"set dns.token or ENVCTL_DNS_TOKEN")
		}
		return NewDigitalOcean(opts.Token, opts.Zone, opts.TTL), nil
	default:
		return nil, oerrors.NewValidationError(fmt.Sprintf("unknown DNS provider %q", opts.Provider), "", "dns.provider",
			"use digitalocean or memory")
	}
}

// RecordFor builds the record pointing name at target: an A record for IP
// addresses and a CNAME otherwise.
func RecordFor(name, target string) Record {
	if net.ParseIP(target) != nil {
		return Record{Name: name, Type: TypeA, Target: target}
	}
	return Record{Name: name, Type: TypeCNAME, Target: target}
}

// EndpointName returns the zone-relative name of an environment endpoint.
func EndpointName(endpoint, env string) string {
	return endpoint + "." + env
}

// FQDN joins a zone-relative name with the zone domain.
func FQDN(z Zone, name string) string {
	return name + "." + z.Domain()
}

// InEnvironment reports whether the zone-relative name belongs to env.
func InEnvironment(name, env string) bool {
	return strings.HasSuffix(name, "."+env)
}
