package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gyaneshwarpardhi/fraudgate/internal/api"
	"github.com/gyaneshwarpardhi/fraudgate/internal/audit"
	"github.com/gyaneshwarpardhi/fraudgate/internal/bus"
	"github.com/gyaneshwarpardhi/fraudgate/internal/config"
	"github.com/gyaneshwarpardhi/fraudgate/internal/decision"
	"github.com/gyaneshwarpardhi/fraudgate/internal/metrics"
	"github.com/gyaneshwarpardhi/fraudgate/internal/notify"
	"github.com/gyaneshwarpardhi/fraudgate/internal/reaction"
	"github.com/gyaneshwarpardhi/fraudgate/internal/router"
	"github.com/gyaneshwarpardhi/fraudgate/internal/routing"
	"github.com/gyaneshwarpardhi/fraudgate/internal/rule"
	"github.com/gyaneshwarpardhi/fraudgate/internal/store/filestore"
	"github.com/gyaneshwarpardhi/fraudgate/internal/store/memory"
	"github.com/gyaneshwarpardhi/fraudgate/internal/store/sqlstore"
)

func main() {
	cfgPath := flag.String("config", "", "Path to gateway YAML config (defaults apply when empty)")
	seedPath := flag.String("seed", "", "YAML rule file used to seed an empty rule store")
	flag.Parse()

	// ── Load config ──────────────────────────────────────────────────────────
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger := newLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *seedPath, logger); err != nil {
		slog.Error("gateway stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("goodbye")
}

func newLogger(w io.Writer, conf config.LogConf) *slog.Logger {
	opts := &slog.HandlerOptions{Level: conf.SlogLevel()}
	if strings.EqualFold(conf.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func run(ctx context.Context, cfg *config.Config, seedPath string, logger *slog.Logger) error {
	// ── Stores ────────────────────────────────────────────────────────────────
	st, err := openStores(ctx, cfg, seedPath, logger)
	if err != nil {
		return err
	}
	defer st.close()

	// ── Notification history ─────────────────────────────────────────────────
	history, closeHistory, err := openHistory(ctx, cfg.Notifications)
	if err != nil {
		return err
	}
	defer closeHistory()

	// ── Bus and reactions ────────────────────────────────────────────────────
	kafka := bus.NewKafka(bus.KafkaConfig{
		Brokers:         cfg.Kafka.Brokers,
		RefreshInterval: cfg.Kafka.TopicRefreshInterval,
	}, logger)
	defer kafka.Close()

	listeners := reaction.NewListeners()
	listeners.Register(notify.Recorder(history, logger))
	runner := reaction.NewRunner(kafka, listeners, &http.Client{Timeout: cfg.ExternalAPI.Timeout}, logger)

	// ── Pipeline and router ──────────────────────────────────────────────────
	pipeline := decision.New(st.rules, st.audits, runner, logger)
	rtr := router.New(router.Config{
		ApplicationsTopic:  cfg.Kafka.ApplicationsTopic,
		EventsPattern:      cfg.Kafka.EventsPattern,
		NotificationsTopic: cfg.Kafka.NotificationsTopic,
		ApplicationsGroup:  cfg.Kafka.ApplicationsGroup,
		EventsGroup:        cfg.Kafka.EventsGroup,
		NotificationsGroup: cfg.Kafka.NotificationsGroup,
	}, pipeline, routing.Default(), runner, logger)

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.New(api.Deps{
		Rules:              st.rules,
		Audit:              st.audits,
		History:            history,
		Publisher:          kafka,
		NotificationsTopic: cfg.Kafka.NotificationsTopic,
		Stream:             notify.NewHub(listeners, history, cfg.Notifications.MaxHistory, logger),
		Ready:              st.ready,
		Logger:             logger,
	})
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rtr.Run(gctx, kafka)
	})
	g.Go(func() error {
		slog.Info("server starting", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	// ── Graceful shutdown ─────────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down…")
		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	return g.Wait()
}

type stores struct {
	rules  rule.Repository
	audits interface {
		audit.Store
		audit.Reader
	}
	ready   func(ctx context.Context) error
	closers []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores selects the audit backend from store.driver. Rules come from the
// same backend unless rules.file points at a YAML rule file.
func openStores(ctx context.Context, cfg *config.Config, seedPath string, logger *slog.Logger) (*stores, error) {
	var seed []rule.Rule
	if seedPath != "" {
		var err error
		if seed, err = filestore.Load(seedPath); err != nil {
			return nil, fmt.Errorf("load seed rules: %w", err)
		}
	}

	s := &stores{}
	if strings.EqualFold(cfg.Store.Driver, "memory") {
		s.rules = memory.NewRules(seed...)
		s.audits = memory.NewAudit()
		slog.Info("using in-memory store", "seeded", len(seed))
	} else {
		dialect, err := sqlstore.ParseDialect(cfg.Store.Driver)
		if err != nil {
			return nil, err
		}
		db, err := sqlstore.Open(ctx, dialect, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = db.Close() })
		rules := db.Rules()
		if len(seed) > 0 {
			n, err := rules.Seed(ctx, seed)
			if err != nil {
				s.close()
				return nil, err
			}
			slog.Info("seeded rule store", "inserted", n)
		}
		s.rules, s.audits, s.ready = rules, db.Audit(), db.Ping
		slog.Info("using sql store", "dialect", dialect)
	}

	if cfg.Rules.File != "" {
		fs, err := filestore.Open(cfg.Rules.File, logger)
		if err != nil {
			s.close()
			return nil, err
		}
		current, err := fs.List(ctx)
		if err != nil {
			s.close()
			return nil, err
		}
		trackRuleFile(current)
		fs.OnChange(trackRuleFile)
		stopWatch, err := fs.Watch()
		if err != nil {
			slog.Warn("rule file watcher unavailable (hot-reload disabled)", "err", err)
		} else {
			s.closers = append(s.closers, stopWatch)
		}
		s.rules = fs
	}
	return s, nil
}

// trackRuleFile publishes the size of the file-backed rule set.
func trackRuleFile(rules []rule.Rule) {
	metrics.RuleFileRules.Set(float64(len(rules)))
}

func openHistory(ctx context.Context, conf config.NotificationsConf) (notify.History, func(), error) {
	if !strings.EqualFold(conf.History, "redis") {
		return notify.NewMemoryHistory(conf.MaxHistory), func() {}, nil
	}
	client, err := notify.Dial(ctx, conf.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("using redis notification history", "key", conf.RedisKey)
	return notify.NewRedisHistory(client, conf.RedisKey, conf.MaxHistory), func() { _ = client.Close() }, nil
}
