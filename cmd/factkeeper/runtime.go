package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dotsetgreg/factkeeper/pkg/agent"
	"github.com/dotsetgreg/factkeeper/pkg/bus"
	"github.com/dotsetgreg/factkeeper/pkg/channels"
	"github.com/dotsetgreg/factkeeper/pkg/config"
	"github.com/dotsetgreg/factkeeper/pkg/events"
	"github.com/dotsetgreg/factkeeper/pkg/facts"
	"github.com/dotsetgreg/factkeeper/pkg/logger"
	"github.com/dotsetgreg/factkeeper/pkg/providers"
	"github.com/dotsetgreg/factkeeper/pkg/store"
)

// appRuntime holds everything one process needs to run conversations.
type appRuntime struct {
	cfg      *config.Config
	bus      *bus.MessageBus
	facts    *store.FactStore
	loop     *agent.AgentLoop
	resyncer *store.Resyncer
	closers  []func() error
}

func newRuntime(ctx context.Context, cfg *config.Config) (*appRuntime, error) {
	rt := &appRuntime{cfg: cfg, bus: bus.NewMessageBus()}

	provider, err := providers.CreateProvider(cfg)
	switch {
	case errors.Is(err, providers.ErrDisabled):
		provider = nil
	case err != nil:
		return nil, fmt.Errorf("create provider: %w", err)
	default:
		if c, ok := provider.(interface{ Close() error }); ok {
			rt.closers = append(rt.closers, c.Close)
		}
	}

	var classifier facts.Classifier = facts.NewRuleClassifier()
	if provider != nil {
		classifier = facts.NewAIClassifier(provider, "", cfg.ClassifierTimeout())
	}
	logger.InfoCF("agent", "Classifier selected", map[string]interface{}{
		"provider": providers.ActiveProviderName(cfg),
	})

	fs, err := store.Open(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open fact store: %w", err)
	}
	rt.facts = fs
	rt.closers = append(rt.closers, fs.Close)

	if fs.BackendName() != store.BackendMemory {
		resyncer, err := store.NewResyncer(fs, cfg.Store.ResyncCron)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.resyncer = resyncer
	}

	sessions, err := rt.openSessions(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	publisher := events.FromConfig(cfg)
	rt.closers = append(rt.closers, publisher.Close)

	conv := agent.NewConversation(agent.Options{
		Sessions:    sessions,
		Facts:       fs,
		Classifier:  classifier,
		Phraser:     agent.NewPhraser(provider, "", cfg.PhraseTimeout()),
		Events:      publisher,
		HistorySize: cfg.Agent.HistorySize,
	})
	rt.loop = agent.NewAgentLoop(cfg, rt.bus, conv)
	return rt, nil
}

func (rt *appRuntime) openSessions(ctx context.Context) (agent.SessionStore, error) {
	sc := rt.cfg.Sessions
	switch strings.ToLower(strings.TrimSpace(sc.Backend)) {
	case "", "memory":
		return agent.NewMemorySessionStore(), nil
	case "redis":
		client, err := agent.DialRedis(ctx, sc.RedisAddr, sc.RedisPassword, sc.RedisDB)
		if err != nil {
			logger.WarnCF("agent", "Redis unreachable, sessions fall back to memory until it recovers", map[string]interface{}{
				"addr":  sc.RedisAddr,
				"error": err.Error(),
			})
		}
		rt.closers = append(rt.closers, client.Close)
		return agent.NewRedisSessionStore(client, sc.KeyPrefix, rt.cfg.StoreTimeout()), nil
	default:
		return nil, fmt.Errorf("unsupported sessions backend %q", sc.Backend)
	}
}

// readiness reports the loop, store and channel state for /ready.
func (rt *appRuntime) readiness(m *channels.Manager) func(ctx context.Context) (map[string]interface{}, error) {
	return func(ctx context.Context) (map[string]interface{}, error) {
		factsHeld, purges := rt.facts.Pending()
		checks := map[string]interface{}{
			"store":          rt.facts.BackendName(),
			"pending_facts":  factsHeld,
			"pending_purges": purges,
			"channels":       m.GetStatus(),
			"agent":          rt.loop.GetStartupInfo(),
		}
		if !rt.loop.IsRunning() {
			return checks, errors.New("agent loop not running")
		}
		return checks, nil
	}
}

// Close releases resources in reverse order of acquisition.
func (rt *appRuntime) Close() {
	rt.bus.Close()
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			logger.WarnCF("main", "Shutdown step failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	rt.closers = nil
}
