package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Set holds the scheduler's counters. A single Set is shared by the tick
// runner and registered once at startup.
type Set struct {
	Registry *prometheus.Registry

	Ticks            prometheus.Counter
	Sends            *prometheus.CounterVec
	SendFailures     *prometheus.CounterVec
	DedupHits        prometheus.Counter
	CampaignsSkipped prometheus.Counter
	SentLogErrors    prometheus.Counter
	TickDuration     prometheus.Histogram
}

func NewSet() *Set {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Set{
		Registry: reg,
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "festpush_ticks_total",
			Help: "Scheduler ticks executed.",
		}),
		Sends: f.NewCounterVec(prometheus.CounterOpts{
			Name: "festpush_sends_total",
			Help: "Notifications delivered, by campaign kind.",
		}, []string{"kind"}),
		SendFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "festpush_send_failures_total",
			Help: "Notification delivery failures, by campaign kind.",
		}, []string{"kind"}),
		DedupHits: f.NewCounter(prometheus.CounterOpts{
			Name: "festpush_dedup_hits_total",
			Help: "Due slots skipped because the send log already had them.",
		}),
		CampaignsSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "festpush_campaigns_skipped_total",
			Help: "Campaigns skipped during a tick due to invalid configuration.",
		}),
		SentLogErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "festpush_sentlog_errors_total",
			Help: "Send-log read or write errors.",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "festpush_tick_duration_seconds",
			Help:    "Wall time of a full scheduler tick.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
