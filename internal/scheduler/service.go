package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"festpush/internal/eventbus"
	"festpush/internal/notify"
	"festpush/internal/observability/metrics"
	rtsup "festpush/internal/runtime/supervisor"
	"festpush/internal/storage"
	logx "festpush/pkg/logx"
)

// Service owns the cron entry and the tick execution. It is safe for
// concurrent use; Apply may be called during hot-reload.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	store  storage.Store
	sender notify.Sender
	sel    *MessageSelector
	met    *metrics.Set
	bus    eventbus.Bus
	clock  Clock

	cfg Config
	loc *time.Location

	cron *cron.Cron
	sup  *rtsup.Supervisor

	// Held for the duration of a tick. A minute tick that lands while the
	// previous one still runs is skipped; the lookback covers it.
	tickMu sync.Mutex

	stats struct {
		sync.Mutex
		lastTick time.Time
		ticks    uint64
		sent     uint64
		deduped  uint64
		failed   uint64
	}
}

type Option func(*Service)

func WithBus(bus eventbus.Bus) Option          { return func(s *Service) { s.bus = bus } }
func WithMetrics(set *metrics.Set) Option      { return func(s *Service) { s.met = set } }
func WithClock(c Clock) Option                 { return func(s *Service) { s.clock = c } }
func WithSelector(sel *MessageSelector) Option { return func(s *Service) { s.sel = sel } }

func New(cfg Config, store storage.Store, sender notify.Sender, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:    log,
		store:  store,
		sender: sender,
		clock:  systemClock{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.sel == nil {
		s.sel = NewMessageSelector()
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Apply installs cfg. A timezone or enabled change while running restarts
// the cron entry so the minute boundary follows the new location.
func (s *Service) Apply(ctx context.Context, cfg Config) {
	s.mu.Lock()
	prev := s.cfg
	running := s.cron != nil
	s.applyLocked(cfg)
	cur := s.cfg
	s.mu.Unlock()

	if !running {
		if cur.Enabled {
			s.Start(ctx)
		}
		return
	}
	if !cur.Enabled {
		s.Stop(ctx)
		return
	}
	if prev.Timezone != cur.Timezone {
		s.Stop(ctx)
		s.Start(ctx)
	}
}

func (s *Service) applyLocked(cfg Config) {
	cfg.setDefaults()
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		s.log.Error("bad timezone, keeping previous", logx.String("tz", cfg.Timezone), logx.Err(err))
		if s.loc == nil {
			loc = time.UTC
			cfg.Timezone = "UTC"
		} else {
			loc = s.loc
			cfg.Timezone = s.cfg.Timezone
		}
	}
	s.cfg = cfg
	s.loc = loc
}

func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.cron != nil || !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}
	loc := s.loc
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "scheduler"))),
		rtsup.WithCancelOnError(false),
	)
	runCtx := s.sup.Context()
	c := cron.New(cron.WithLocation(loc))
	// Every minute on the minute; the tick itself decides what is due.
	_, err := c.AddFunc("* * * * *", func() { s.onTick(runCtx) })
	if err != nil {
		s.mu.Unlock()
		s.log.Error("cron setup failed", logx.Err(err))
		return
	}
	s.cron = c
	sup := s.sup
	lookback := s.cfg.Lookback
	s.mu.Unlock()

	c.Start()
	// Immediate tick so a restart catches up right away instead of waiting
	// for the next minute boundary.
	sup.Go("tick.catchup", func(c context.Context) error {
		s.onTick(c)
		return nil
	})

	s.log.Info("scheduler started", logx.String("tz", loc.String()),
		logx.Duration("lookback", lookback))
}

func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	c := s.cron
	sup := s.sup
	s.cron = nil
	s.sup = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	if sup != nil {
		sup.Cancel()
		_ = sup.Wait(context.Background())
	}
	s.log.Info("scheduler stopped")
}

func (s *Service) onTick(ctx context.Context) {
	if !s.tickMu.TryLock() {
		s.log.Warn("tick still running, skipping this minute")
		return
	}
	defer s.tickMu.Unlock()

	if ctx == nil || ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := s.runTick(ctx); err != nil {
		s.log.Error("tick failed", logx.Err(err))
	}
	if s.met != nil {
		s.met.Ticks.Inc()
		s.met.TickDuration.Observe(time.Since(start).Seconds())
	}
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	running := s.cron != nil
	tz := s.cfg.Timezone
	s.mu.Unlock()

	s.stats.Lock()
	defer s.stats.Unlock()
	return Snapshot{
		Running:  running,
		Timezone: tz,
		LastTick: s.stats.lastTick,
		Ticks:    s.stats.ticks,
		Sent:     s.stats.sent,
		Deduped:  s.stats.deduped,
		Failed:   s.stats.failed,
	}
}
