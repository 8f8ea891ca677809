package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	cachex "github.com/relaycrew/switchboard/agent/cache"
	contractx "github.com/relaycrew/switchboard/agent/contract"
	discoveryx "github.com/relaycrew/switchboard/agent/discovery"
	knowledgex "github.com/relaycrew/switchboard/agent/knowledge"
	orchestratorx "github.com/relaycrew/switchboard/agent/orchestrator"
	registryx "github.com/relaycrew/switchboard/agent/registry"
	teamx "github.com/relaycrew/switchboard/agent/team"
	configx "github.com/relaycrew/switchboard/pkg/config"
	_ "github.com/relaycrew/switchboard/pkg/logger/autoload"
	redisrestx "github.com/relaycrew/switchboard/pkg/redisrest"
)

var _ contractx.RemoteTier = (*redisrestx.Client)(nil)

type AppConfig struct {
	HTTPAddr    string `envconfig:"HTTP_ADDR" split_words:"true" default:":8080"`
	Providers   string `envconfig:"PROVIDERS" required:"true"`
	Teams       string `envconfig:"TEAMS"`
	RemoteCache string `envconfig:"REMOTE_CACHE" default:"redis"`
	EventLog    string `envconfig:"EVENT_LOG" default:"memory"`
}

type teamDef struct {
	Kind          string   `json:"kind"`
	Channels      []string `json:"channels,omitempty"`
	TopicPrefixes []string `json:"topic_prefixes,omitempty"`
}

func main() {
	appCfg := configx.MustNew[AppConfig]("")

	var remote contractx.RemoteTier
	if appCfg.RemoteCache == "redis" {
		redisCfg := configx.MustNew[redisrestx.Config]("REDIS")
		remote = redisrestx.MustNew(*redisCfg)
	}
	cacheCfg := configx.MustNew[cachex.Config]("CACHE")
	cache := cachex.New(remote, *cacheCfg)

	reg, err := registryx.FromJSON([]byte(appCfg.Providers))
	if err != nil {
		panic(err)
	}

	discoveryCfg := configx.MustNew[discoveryx.Config]("DISCOVERY")
	engine, err := discoveryx.New(reg, cache, *discoveryCfg)
	if err != nil {
		panic(err)
	}

	events := buildEventLog(appCfg.EventLog)
	store, err := knowledgex.New(cache, events)
	if err != nil {
		panic(err)
	}

	teams, err := buildTeams(appCfg.Teams)
	if err != nil {
		panic(err)
	}

	orch, err := orchestratorx.New(cache, engine, store, teams)
	if err != nil {
		panic(err)
	}

	srv := &server{orchestrator: orch, events: events}
	log.Info().
		Str("addr", appCfg.HTTPAddr).
		Int("providers", reg.Len()).
		Msg("switchboard listening")
	if err := http.ListenAndServe(appCfg.HTTPAddr, srv.routes()); err != nil {
		panic(err)
	}
}

func buildEventLog(kind string) contractx.EventLog {
	if kind != "postgres" {
		return knowledgex.NewMemoryEventLog()
	}
	pgCfg := configx.MustNew[knowledgex.PGConfig]("POSTGRES")
	events, err := knowledgex.NewPGEventLog(*pgCfg)
	if err != nil {
		panic(err)
	}
	if err := events.Init(context.Background()); err != nil {
		panic(err)
	}
	return events
}

func buildTeams(raw string) (*teamx.Registry, error) {
	llmCfg := configx.MustNew[teamx.LLMConfig]("TEAM_LLM")
	llmTeam, err := teamx.NewLLMTeam(*llmCfg)
	if err != nil {
		return nil, err
	}

	defs := []teamDef{{Kind: "assistant"}}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &defs); err != nil {
			return nil, err
		}
	}

	definitions := make([]teamx.Definition, 0, len(defs))
	for _, def := range defs {
		definitions = append(definitions, teamx.Definition{
			Kind:          def.Kind,
			Channels:      def.Channels,
			TopicPrefixes: def.TopicPrefixes,
			Team:          llmTeam,
		})
	}
	return teamx.NewRegistry(definitions...)
}
