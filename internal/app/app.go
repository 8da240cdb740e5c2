package app

import (
	"context"
	"fmt"
	"time"

	"festpush/internal/config"
	"festpush/internal/eventbus"
	"festpush/internal/notify"
	"festpush/internal/observability/metrics"
	"festpush/internal/observability/pprof"
	rtsup "festpush/internal/runtime/supervisor"
	"festpush/internal/scheduler"
	"festpush/internal/storage"
	logx "festpush/pkg/logx"
)

// App wires config, storage, the delivery driver and the tick runner
// together and owns their lifecycle.
type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store      storage.Store
	storageCfg storage.Config
	sender     notify.Sender
	notifyCfg  notify.Config

	sched *scheduler.Service
	mets  *metrics.Service
	prof  *pprof.Service
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", sc.Driver))

	nc, err := mapNotifyConfig(cfg)
	if err != nil {
		return nil, err
	}
	sender, err := notify.Open(nc, log.With(logx.String("comp", "notify")))
	if err != nil {
		return nil, err
	}
	log.Info("notify driver ready", logx.String("driver", nc.Driver))

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}

	set := metrics.NewSet()
	schedSvc := scheduler.New(schedCfg, store, sender,
		log.With(logx.String("comp", "scheduler")),
		scheduler.WithBus(bus), scheduler.WithMetrics(set))

	metSvc := metrics.New(mapMetricsConfig(cfg), set, log.With(logx.String("comp", "metrics")))
	profSvc := pprof.New(mapPprofConfig(cfg), log.With(logx.String("comp", "pprof")))

	return &App{
		cfgPath:    cfgPath,
		cfgm:       cfgm,
		log:        log,
		logs:       logSvc,
		bus:        bus,
		store:      store,
		storageCfg: sc,
		sender:     sender,
		notifyCfg:  nc,
		sched:      schedSvc,
		mets:       metSvc,
		prof:       profSvc,
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Scheduler() *scheduler.Service { return a.sched }

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// Transactional hot-reload: a config that fails validation is never
	// committed or published.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if _, err := mapSchedulerConfig(cfg); err != nil {
			return err
		}
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if _, err := mapNotifyConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
	} else {
		a.log.Warn("scheduler disabled; nothing will be sent")
	}
	if a.mets.Enabled() {
		a.mets.Start(a.sup.Context())
	}
	if a.prof.Enabled() {
		a.prof.Start(a.sup.Context())
	}

	// Event log for observability/debug.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// Hot-reload fan-out.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(c, newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) applyReload(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	// Storage and notify drivers are bound at startup; flag the change
	// instead of juggling a live swap mid-tick.
	if sc, err := mapStorageConfig(cfg); err == nil && sc != a.storageCfg {
		a.log.Warn("storage config changed; restart required to take effect")
	}
	if nc, err := mapNotifyConfig(cfg); err == nil && nc != a.notifyCfg {
		a.log.Warn("notify config changed; restart required to take effect")
	}

	if schedCfg, err := mapSchedulerConfig(cfg); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else {
		a.sched.Apply(ctx, schedCfg)
	}

	a.mets.Reconfigure(ctx, mapMetricsConfig(cfg))
	a.prof.Reconfigure(ctx, mapPprofConfig(cfg))

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	snap := a.sched.Snapshot()
	a.log.Info("stopping",
		logx.Int64("ticks", int64(snap.Ticks)),
		logx.Int64("sent", int64(snap.Sent)),
		logx.Int64("deduped", int64(snap.Deduped)),
		logx.Int64("failed", int64(snap.Failed)))
	a.sup.Cancel()

	// Bound each shutdown step so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}
		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name))
		}
	}

	step("scheduler", 5*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("metrics", 1*time.Second, func(c context.Context) error { a.mets.Stop(c); return nil })
	step("pprof", 1*time.Second, func(c context.Context) error { a.prof.Stop(c); return nil })
	step("notify", 2*time.Second, func(c context.Context) error { return a.sender.Close() })
	step("storage", 1*time.Second, func(c context.Context) error { return a.store.Close() })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	counters := a.sup.Counters()
	a.log.Info("stopped",
		logx.Int64("goroutines_started", int64(counters.Started)),
		logx.Int64("goroutines_active", counters.Active))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
