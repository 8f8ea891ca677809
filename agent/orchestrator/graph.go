package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/relaycrew/switchboard/agent/nodes"
)

func (o *Orchestrator) compileHandleRequestGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("resolve_context",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ResolveContext(ctx, in, o.resolver, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node resolve_context: %w", err)
	}

	if err := graph.AddLambdaNode("snapshot_capabilities",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.SnapshotCapabilities(ctx, in, o.engine)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node snapshot_capabilities: %w", err)
	}

	if err := graph.AddLambdaNode("select_team",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.SelectTeam(ctx, in, o.teams, o.cache)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node select_team: %w", err)
	}

	if err := graph.AddLambdaNode("gather_knowledge",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.GatherKnowledge(ctx, in, o.knowledge)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node gather_knowledge: %w", err)
	}

	if err := graph.AddLambdaNode("execute_team",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ExecuteTeam(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node execute_team: %w", err)
	}

	if err := graph.AddLambdaNode("record_outcome",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RecordOutcome(ctx, in, o.knowledge)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node record_outcome: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "resolve_context"},
		{"resolve_context", "snapshot_capabilities"},
		{"snapshot_capabilities", "select_team"},
		{"select_team", "gather_knowledge"},
		{"gather_knowledge", "execute_team"},
		{"execute_team", "record_outcome"},
		{"record_outcome", "finalize_reply"},
		{"finalize_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_request"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
