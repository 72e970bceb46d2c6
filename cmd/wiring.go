package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/speakquest/internal/analytics"
	"github.com/abhisek/speakquest/internal/config"
	"github.com/abhisek/speakquest/internal/conversation"
	"github.com/abhisek/speakquest/internal/gateway"
	"github.com/abhisek/speakquest/internal/llm"
	"github.com/abhisek/speakquest/internal/lock"
	"github.com/abhisek/speakquest/internal/practice"
	"github.com/abhisek/speakquest/internal/progression"
	"github.com/abhisek/speakquest/internal/store"
)

// services is the dependency graph shared by serve and the admin commands.
type services struct {
	store        *store.Store
	gateway      *gateway.Gateway
	conversation *conversation.Service
	progression  *progression.Service
	analyzer     *analytics.Analyzer
	practice     *practice.Service

	closers []func() error
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// buildServices opens the store, picks the locker and wires the model
// gateway. Without a model, gateway and practice are nil and the
// conversation service can only abandon sessions.
func buildServices(ctx context.Context, cfg config.Config, withModel bool, log *zap.Logger) (*services, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	s := &services{store: st, closers: []func() error{st.Close}}

	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.Redis.Addr != "" {
		// Session locks are held across one model call, which the gateway
		// bounds by llm.timeout.
		rl, err := lock.NewRedisLocker(ctx, cfg.Redis.Addr, lock.TTLFor(cfg.LLM.Timeout), log)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		locker = rl
		s.closers = append(s.closers, rl.Close)
		log.Info("using redis locks", zap.String("addr", cfg.Redis.Addr))
	}

	s.progression = progression.NewService(st, locker, cfg.Badges.TrackEarnedAt, log)
	s.analyzer = analytics.NewAnalyzer(st.Repos, log)

	var assistant conversation.Assistant
	if withModel {
		mc := cfg.ModelConfig()
		provider, err := llm.NewProvider(ctx, mc, st.Events(), log)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("LLM provider not configured: %w", err)
		}
		log.Info("model provider ready", zap.String("provider", mc.Provider), zap.String("model", provider.ModelID()))
		s.gateway = gateway.New(provider, cfg.LLM.Timeout, log)
		s.practice = practice.NewService(st, s.analyzer, practice.NewGenerator(s.gateway, log), log)
		assistant = s.gateway
	}
	s.conversation = conversation.NewService(st, assistant, locker, log)
	return s, nil
}
