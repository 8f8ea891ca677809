package team

import (
	"context"
	"testing"

	contractx "github.com/relaycrew/switchboard/agent/contract"
)

type stubTeam struct{}

func (stubTeam) Execute(ctx context.Context, req contractx.TeamRequest) (contractx.TeamResult, error) {
	return contractx.TeamResult{}, nil
}

func TestNewRegistryValidatesDefinitions(t *testing.T) {
	t.Parallel()

	if _, err := NewRegistry(Definition{Kind: " ", Team: stubTeam{}}); err == nil {
		t.Fatal("NewRegistry() should reject an empty kind")
	}
	if _, err := NewRegistry(Definition{Kind: "sales"}); err == nil {
		t.Fatal("NewRegistry() should reject a nil team")
	}
	if _, err := NewRegistry(
		Definition{Kind: "sales", Team: stubTeam{}},
		Definition{Kind: "sales", Team: stubTeam{}},
	); err == nil {
		t.Fatal("NewRegistry() should reject duplicate kinds")
	}
}

func TestSelectChannelTaggedBeatsGeneric(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(
		Definition{Kind: "generic", Team: stubTeam{}},
		Definition{Kind: "line-support", Channels: []string{"line"}, Team: stubTeam{}},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	def, ok := reg.Select("line", "billing")
	if !ok || def.Kind != "line-support" {
		t.Fatalf("Select(line) = %+v, %v; want line-support", def, ok)
	}

	// A channel the tagged team does not cover falls back to the generic one.
	def, ok = reg.Select("web", "billing")
	if !ok || def.Kind != "generic" {
		t.Fatalf("Select(web) = %+v, %v; want generic", def, ok)
	}
}

func TestSelectLongestTopicPrefixWins(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(
		Definition{Kind: "catchall", Team: stubTeam{}},
		Definition{Kind: "billing", TopicPrefixes: []string{"billing"}, Team: stubTeam{}},
		Definition{Kind: "billing-refunds", TopicPrefixes: []string{"billing:refunds"}, Team: stubTeam{}},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	def, ok := reg.Select("web", "billing:refunds:late")
	if !ok || def.Kind != "billing-refunds" {
		t.Fatalf("Select() = %+v, %v; want billing-refunds", def, ok)
	}

	def, ok = reg.Select("web", "billing:invoices")
	if !ok || def.Kind != "billing" {
		t.Fatalf("Select() = %+v, %v; want billing", def, ok)
	}

	def, ok = reg.Select("web", "shipping")
	if !ok || def.Kind != "catchall" {
		t.Fatalf("Select() = %+v, %v; want catchall", def, ok)
	}
}

func TestSelectChannelOutranksPrefixSpecificity(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(
		Definition{Kind: "billing-specialist", TopicPrefixes: []string{"billing:refunds"}, Team: stubTeam{}},
		Definition{Kind: "line-generalist", Channels: []string{"line"}, Team: stubTeam{}},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	def, ok := reg.Select("line", "billing:refunds")
	if !ok || def.Kind != "line-generalist" {
		t.Fatalf("Select() = %+v, %v; want the channel-tagged team", def, ok)
	}
}

func TestSelectDeclarationOrderBreaksTies(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(
		Definition{Kind: "first", Team: stubTeam{}},
		Definition{Kind: "second", Team: stubTeam{}},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	def, ok := reg.Select("web", "anything")
	if !ok || def.Kind != "first" {
		t.Fatalf("Select() = %+v, %v; want the first declared team", def, ok)
	}
}

func TestSelectNoMatch(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(
		Definition{Kind: "billing", TopicPrefixes: []string{"billing"}, Team: stubTeam{}},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	if def, ok := reg.Select("web", "shipping"); ok {
		t.Fatalf("Select() = %+v, want no match", def)
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(Definition{Kind: "sales", Team: stubTeam{}})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	if def, ok := reg.Lookup("sales"); !ok || def.Kind != "sales" {
		t.Fatalf("Lookup(sales) = %+v, %v", def, ok)
	}
	if _, ok := reg.Lookup("ghost"); ok {
		t.Fatal("Lookup(ghost) should miss")
	}
}
