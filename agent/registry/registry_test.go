package registry

import (
	"errors"
	"testing"
	"time"

	contractx "github.com/relaycrew/switchboard/agent/contract"
)

func TestNewAppliesTransportDefaults(t *testing.T) {
	t.Parallel()

	reg, err := New(
		contractx.CapabilityProvider{
			ID:        "catalog",
			Transport: contractx.TransportHTTP,
			Endpoint:  "http://catalog.internal/capabilities",
		},
		contractx.CapabilityProvider{
			ID:         "builtin",
			Transport:  contractx.TransportStatic,
			Operations: []contractx.Operation{{Name: "echo"}},
		},
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	catalog, err := reg.Lookup("catalog")
	if err != nil {
		t.Fatalf("Lookup(catalog) error = %v", err)
	}
	if catalog.DiscoveryTTL != 15*time.Minute {
		t.Fatalf("http DiscoveryTTL = %v, want 15m", catalog.DiscoveryTTL)
	}
	if catalog.Timeout != 10*time.Second {
		t.Fatalf("Timeout = %v, want 10s", catalog.Timeout)
	}

	builtin, err := reg.Lookup("builtin")
	if err != nil {
		t.Fatalf("Lookup(builtin) error = %v", err)
	}
	if builtin.DiscoveryTTL != 4*time.Hour {
		t.Fatalf("static DiscoveryTTL = %v, want 4h", builtin.DiscoveryTTL)
	}
}

func TestNewRejectsInvalidProviders(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		provider contractx.CapabilityProvider
	}{
		{"empty id", contractx.CapabilityProvider{Transport: contractx.TransportHTTP, Endpoint: "http://x"}},
		{"colon in id", contractx.CapabilityProvider{ID: "cat:alog", Transport: contractx.TransportHTTP, Endpoint: "http://x"}},
		{"http without endpoint", contractx.CapabilityProvider{ID: "catalog", Transport: contractx.TransportHTTP}},
		{"static without operations", contractx.CapabilityProvider{ID: "builtin", Transport: contractx.TransportStatic}},
		{"unknown transport", contractx.CapabilityProvider{ID: "catalog", Transport: "grpc"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.provider); err == nil {
				t.Fatalf("New(%+v) succeeded, want error", tc.provider)
			}
		})
	}
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	t.Parallel()

	_, err := New(
		contractx.CapabilityProvider{ID: "catalog", Transport: contractx.TransportHTTP, Endpoint: "http://a"},
		contractx.CapabilityProvider{ID: "catalog", Transport: contractx.TransportHTTP, Endpoint: "http://b"},
	)
	if !errors.Is(err, ErrDuplicateProvider) {
		t.Fatalf("New() error = %v, want ErrDuplicateProvider", err)
	}
}

func TestLookupUnknownProvider(t *testing.T) {
	t.Parallel()

	reg, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := reg.Lookup("ghost"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("Lookup(ghost) error = %v, want ErrUnknownProvider", err)
	}
}

func TestAllPreservesDeclarationOrder(t *testing.T) {
	t.Parallel()

	reg, err := New(
		contractx.CapabilityProvider{ID: "zeta", Transport: contractx.TransportHTTP, Endpoint: "http://z"},
		contractx.CapabilityProvider{ID: "alpha", Transport: contractx.TransportHTTP, Endpoint: "http://a"},
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	all := reg.All()
	if len(all) != 2 || all[0].ID != "zeta" || all[1].ID != "alpha" {
		t.Fatalf("All() = %+v, want declaration order zeta, alpha", all)
	}
	if reg.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", reg.Len())
	}
}

func TestFromJSON(t *testing.T) {
	t.Parallel()

	raw := []byte(`[
		{"id":"catalog","transport":"http","endpoint":"http://catalog.internal/capabilities"},
		{"id":"builtin","transport":"static","operations":[{"name":"echo"}]}
	]`)

	reg, err := FromJSON(raw)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", reg.Len())
	}

	if _, err := FromJSON([]byte(`{not json`)); err == nil {
		t.Fatal("FromJSON() should fail on malformed input")
	}
}
