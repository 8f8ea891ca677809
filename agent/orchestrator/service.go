// Package orchestrator routes inbound requests to agent teams using the
// current capability snapshot, tenant configuration and relevant knowledge.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"

	cachex "github.com/relaycrew/switchboard/agent/cache"
	contractx "github.com/relaycrew/switchboard/agent/contract"
	discoveryx "github.com/relaycrew/switchboard/agent/discovery"
	knowledgex "github.com/relaycrew/switchboard/agent/knowledge"
	nodex "github.com/relaycrew/switchboard/agent/nodes"
	teamx "github.com/relaycrew/switchboard/agent/team"
)

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithTenantResolver installs the collaborator that derives a tenant from
// channel routing metadata when a request carries none.
func WithTenantResolver(resolver contractx.TenantResolver) Option {
	return func(o *Orchestrator) {
		o.resolver = resolver
	}
}

type Orchestrator struct {
	cache     *cachex.Cache
	engine    *discoveryx.Engine
	knowledge *knowledgex.Store
	teams     *teamx.Registry
	resolver  contractx.TenantResolver

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

func New(
	cache *cachex.Cache,
	engine *discoveryx.Engine,
	knowledge *knowledgex.Store,
	teams *teamx.Registry,
	opts ...Option,
) (*Orchestrator, error) {
	if cache == nil {
		return nil, errors.New("cache layer is required")
	}
	if engine == nil {
		return nil, errors.New("discovery engine is required")
	}
	if knowledge == nil {
		return nil, errors.New("knowledge store is required")
	}
	if teams == nil {
		return nil, errors.New("team registry is required")
	}

	o := &Orchestrator{
		cache:     cache,
		engine:    engine,
		knowledge: knowledge,
		teams:     teams,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	graphRunner, err := o.compileHandleRequestGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleRequest drives one inbound request through the routing graph. Any
// node error terminates the request as failed; callers receive a taxonomy
// error, never a raw transport failure.
func (o *Orchestrator) HandleRequest(ctx context.Context, req contractx.InboundRequest) (nodex.GraphOutput, error) {
	requestID := uuid.NewString()
	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		RequestID: requestID,
		Request:   req,
	})
	if err != nil {
		return nodex.GraphOutput{
			RequestID: requestID,
			State:     contractx.StateFailed,
		}, err
	}
	return out, nil
}
