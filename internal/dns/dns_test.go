package dns

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/envctl/envctl/internal/errors"
)

func TestRecordFor(t *testing.T) {
	tests := []struct {
		target   string
		wantType string
	}{
		{"203.0.113.10", TypeA},
		{"2001:db8::1", TypeA},
		{"lb.example.net", TypeCNAME},
		{"abc123.elb.amazonaws.com", TypeCNAME},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := RecordFor("web.staging", tt.target)
			assert.Equal(t, tt.wantType, rec.Type)
			assert.Equal(t, "web.staging", rec.Name)
			assert.Equal(t, tt.target, rec.Target)
		})
	}
}

func TestNames(t *testing.T) {
	z := NewMemory("example.com")
	name := EndpointName("web", "staging")
	assert.Equal(t, "web.staging", name)
	assert.Equal(t, "web.staging.example.com", FQDN(z, name))
	assert.True(t, InEnvironment(name, "staging"))
	assert.False(t, InEnvironment(name, "prod"))
	assert.False(t, InEnvironment("web.prestaging", "staging"))
}

func TestNew(t *testing.T) {
	_, err := New(Options{Zone: "example.com"})
	assert.ErrorIs(t, err, oerrors.ErrValidation, "a zone needs an explicit provider")

	z, err := New(Options{Provider: "memory", Zone: "example.com"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, z)

	z, err = New(Options{Provider: "DigitalOcean", Zone: "example.com", Token: "tok"})
	require.NoError(t, err)
	assert.IsType(t, &DigitalOcean{}, z)
	assert.Equal(t, "example.com", z.Domain())

	_, err = New(Options{Provider: "digitalocean", Zone: "example.com"})
	assert.ErrorIs(t, err, oerrors.ErrValidation)

	_, err = New(Options{Provider: "route53"})
	assert.ErrorIs(t, err, oerrors.ErrValidation)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	z := NewMemory("example.com")

	require.NoError(t, z.CreateRecord(ctx, RecordFor("web.staging", "203.0.113.10")))
	require.NoError(t, z.CreateRecord(ctx, RecordFor("api.staging", "lb.example.net")))
	require.NoError(t, z.CreateRecord(ctx, RecordFor("web.staging", "203.0.113.11")))

	records, err := z.ListRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{Name: "api.staging", Type: TypeCNAME, Target: "lb.example.net"},
		{Name: "web.staging", Type: TypeA, Target: "203.0.113.11"},
	}, records)

	n, err := z.DeleteRecord(ctx, "web.staging")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = z.DeleteRecord(ctx, "web.staging")
	require.NoError(t, err)
	assert.Zero(t, n)
}
