package cmd

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/abhisek/catengine/internal/calibration"
	"github.com/abhisek/catengine/internal/cat"
	"github.com/abhisek/catengine/internal/config"
	"github.com/abhisek/catengine/internal/events"
	"github.com/abhisek/catengine/internal/llm"
	"github.com/abhisek/catengine/internal/lock"
	"github.com/abhisek/catengine/internal/logger"
	"github.com/abhisek/catengine/internal/metrics"
	"github.com/abhisek/catengine/internal/store"
)

// env holds everything a command needs. Call close when done.
type env struct {
	cfg     *config.Config
	log     *logger.Logger
	store   *store.Store
	metrics *metrics.Metrics
	params  *calibration.Initializer
	svc     *cat.Service

	closers []func()
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// loadConfig reads --config and applies --db to the SQLite DSN.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if store.Driver(cfg.Database.Driver) == store.DriverSQLite {
		flagged, _ := cmd.Flags().GetString("db")
		if flagged != "" || cfg.Database.DSN == "" {
			p, err := resolveDBPath(cmd)
			if err != nil {
				return nil, fmt.Errorf("resolve database path: %w", err)
			}
			cfg.Database.DSN = p
		}
	}
	return cfg, nil
}

// openStore opens only the database, for commands that do not run sessions.
func openStore(cmd *cobra.Command) (*store.Store, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(cmd.Context(), store.Driver(cfg.Database.Driver), cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return st, cfg, nil
}

// setup wires the full engine from configuration.
func setup(cmd *cobra.Command) (*env, error) {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			e.close()
		}
	}()

	e.log, err = logger.New(cfg.LoggerOptions())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	e.closers = append(e.closers, e.log.Sync)

	e.store, err = store.Open(ctx, store.Driver(cfg.Database.Driver), cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	e.closers = append(e.closers, func() { e.store.Close() })

	e.metrics = metrics.New()

	locker, err := e.locker(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := e.publisher()
	if err != nil {
		return nil, err
	}
	labeler, err := e.labeler(ctx)
	if err != nil {
		return nil, err
	}

	seed := uint64(time.Now().UnixNano())
	boot := calibration.NewBootstrapper(calibration.DefaultConfig(), rand.New(rand.NewPCG(seed, seed>>1)))
	e.params = calibration.NewInitializer(e.store.Questions(), e.store.Params(), boot, labeler, e.log)

	e.svc = cat.NewService(cat.Deps{
		Questions: e.store.Questions(),
		Responses: e.store.Responses(),
		Sessions:  e.store.Sessions(),
		Params:    e.params,
		Locker:    locker,
		Events:    publisher,
		Metrics:   e.metrics,
		Log:       e.log,
	}, cfg.EngineConfig())

	ok = true
	return e, nil
}

// locker uses Redis when redis.addr is set so several engine replicas can
// share sessions; otherwise an in-process mutex.
func (e *env) locker(ctx context.Context) (lock.Locker, error) {
	rc := e.cfg.Redis
	if rc.Addr == "" {
		return lock.NewKeyedMutex(), nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", rc.Addr, err)
	}
	e.closers = append(e.closers, func() { rdb.Close() })
	e.log.Info("using redis session locks", "addr", rc.Addr, "ttl", rc.LockTTL)
	return lock.NewRedisLocker(rdb, rc.LockTTL), nil
}

func (e *env) publisher() (events.Publisher, error) {
	if e.cfg.AMQP.URL == "" {
		return events.Nop{}, nil
	}
	p, err := events.NewAMQPPublisher(e.cfg.AMQP.URL, e.cfg.AMQP.Exchange)
	if err != nil {
		return nil, fmt.Errorf("connect amqp: %w", err)
	}
	e.closers = append(e.closers, func() { p.Close() })
	e.log.Info("publishing session events", "exchange", e.cfg.AMQP.Exchange)
	return p, nil
}

// labeler returns nil when no LLM provider is configured, in which case
// unlabelled questions default to Medium.
func (e *env) labeler(ctx context.Context) (calibration.Labeler, error) {
	if e.cfg.LLM.Provider == "" {
		return nil, nil
	}
	provider, err := llm.NewProvider(ctx, e.cfg.LLM.ProviderConfig(), e.store.Events(), e.log, e.metrics)
	if err != nil {
		return nil, err
	}
	e.log.Info("difficulty labelling enabled", "provider", e.cfg.LLM.Provider, "model", provider.ModelID())
	return calibration.NewLLMLabeler(provider, calibration.DefaultLabelerConfig()), nil
}
