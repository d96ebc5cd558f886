package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/clinote/internal/bridge"
	"github.com/hpungsan/clinote/internal/config"
	"github.com/hpungsan/clinote/internal/mcp"
	"github.com/hpungsan/clinote/internal/metrics"
	"github.com/hpungsan/clinote/internal/ops"
	"github.com/hpungsan/clinote/internal/persist"
	"github.com/hpungsan/clinote/internal/store"
	redisstore "github.com/hpungsan/clinote/internal/store/redis"
	"github.com/hpungsan/clinote/internal/store/sqlite"
	"github.com/hpungsan/clinote/internal/web"
	"github.com/hpungsan/clinote/internal/workbench"
)

// session is one process worth of state: a store, a workbench over it and
// the assistant it talks to.
type session struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	store   store.Store
	wb      *workbench.Workbench
	breaker ops.BreakerReporter
}

// openSession opens the configured store and restores the saved drafts.
func openSession(ctx context.Context, baseDir string, cfg *config.Config, logger *zap.Logger) (*session, error) {
	m := metrics.New()
	st, err := openStore(ctx, baseDir, cfg, logger)
	if err != nil {
		return nil, err
	}

	collab := bridge.NewHTTPCollaborator(bridge.HTTPConfig{
		BaseURL:            cfg.AssistantBaseURL,
		Model:              cfg.AssistantModel,
		APIKey:             cfg.AssistantAPIKey,
		Timeout:            time.Duration(cfg.AssistantTimeoutSeconds) * time.Second,
		BreakerMaxFailures: uint32(max(cfg.BreakerMaxFailures, 0)),
		BreakerOpenTimeout: time.Duration(cfg.BreakerOpenSeconds) * time.Second,
	}, logger, m)

	return newSession(ctx, cfg, logger, m, st, collab, collab), nil
}

// newSession wires a workbench over st. breaker may be nil.
func newSession(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics,
	st store.Store, collab bridge.Collaborator, breaker ops.BreakerReporter) *session {
	keeper := persist.NewKeeper(st, persist.Options{
		Logger:       logger,
		Metrics:      m,
		HistoryLimit: cfg.HistoryLimit,
	})
	wb := workbench.New(workbench.Options{
		Keeper:   keeper,
		Bridge:   bridge.New(collab, logger, m),
		Logger:   logger,
		Metrics:  m,
		Debounce: time.Duration(cfg.DraftDebounceMillis) * time.Millisecond,
		Interval: time.Duration(cfg.AutosaveIntervalSeconds) * time.Second,
	})
	wb.Open(ctx)

	return &session{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		store:   st,
		wb:      wb,
		breaker: breaker,
	}
}

// openStore opens the configured backend. An unreachable backend falls back
// to memory so drafting still works; nothing will survive the process.
func openStore(ctx context.Context, baseDir string, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return store.NewMemory(), nil
	case config.BackendRedis:
		st, err := redisstore.Open(ctx, cfg)
		if err != nil {
			logger.Warn("redis unavailable, keeping notes in memory", zap.Error(err))
			return store.NewMemory(), nil
		}
		return st, nil
	case config.BackendSQLite, "":
		st, err := sqlite.Open(baseDir)
		if err != nil {
			logger.Warn("sqlite unavailable, keeping notes in memory", zap.Error(err))
			return store.NewMemory(), nil
		}
		st.ConfigurePool(cfg)
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Close flushes the active draft, then closes the store.
func (s *session) Close() {
	s.wb.Close()
	if err := s.store.Close(); err != nil {
		s.logger.Warn("store close failed", zap.Error(err))
	}
	_ = s.logger.Sync()
}

func (s *session) mcpDeps() mcp.Deps {
	return mcp.Deps{
		Workbench: s.wb,
		Config:    s.cfg,
		Metrics:   s.metrics,
		Breaker:   s.breaker,
		Logger:    s.logger,
	}
}

func (s *session) webDeps() web.Deps {
	return web.Deps{
		Workbench: s.wb,
		Config:    s.cfg,
		Metrics:   s.metrics,
		Breaker:   s.breaker,
		Logger:    s.logger,
	}
}
