package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envctl/envctl/internal/dns"
	oerrors "github.com/envctl/envctl/internal/errors"
)

func TestEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "staging")
	f.create(t, "qa")
	f.cp.lbTargets["web"] = "203.0.113.10"
	f.infra.endpoints["web"] = "web-lb.example.net"
	f.infra.endpoints["db"] = "198.51.100.7"

	created, err := f.o.CreateEndpoints(ctx, "staging")
	require.NoError(t, err)
	assert.Equal(t, Endpoints{
		{Name: "db.staging", FQDN: "db.staging.example.com", Type: dns.TypeA, Target: "198.51.100.7"},
		{Name: "web.staging", FQDN: "web.staging.example.com", Type: dns.TypeCNAME, Target: "web-lb.example.net"},
	}, created, "infrastructure outputs win over services")

	require.NoError(t, f.zone.CreateRecord(ctx, dns.RecordFor("web.qa", "203.0.113.99")))

	listed, err := f.o.ListEndpoints(ctx, "staging")
	require.NoError(t, err)
	assert.Equal(t, created, listed)

	removed, err := f.o.RemoveEndpoints(ctx, "staging")
	require.NoError(t, err)
	assert.Equal(t, created, removed)

	records, err := f.zone.ListRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []dns.Record{{Name: "web.qa", Type: dns.TypeA, Target: "203.0.113.99"}}, records)
}

func TestEndpoints_DNSNotConfigured(t *testing.T) {
	f := newFixture(t)
	f.create(t, "staging")
	f.o.zone = nil

	_, err := f.o.CreateEndpoints(context.Background(), "staging")
	assert.ErrorIs(t, err, oerrors.ErrValidation)
	_, err = f.o.ListEndpoints(context.Background(), "staging")
	assert.ErrorIs(t, err, oerrors.ErrValidation)
	_, err = f.o.RemoveEndpoints(context.Background(), "staging")
	assert.ErrorIs(t, err, oerrors.ErrValidation)
}
