package telemetry

import (
	"context"
	"net/http"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	fx "github.com/robotalks/stepctl/pkg/framework"
	"github.com/robotalks/stepctl/pkg/stepper"
	"github.com/robotalks/stepctl/pkg/supervisor"
)

// Metrics keeps Prometheus collectors updated from loop messages.
type Metrics struct {
	Registry *prometheus.Registry
	// Addr is the listen address of the /metrics endpoint, empty disables it.
	Addr string

	Launches       prometheus.Counter
	LaunchFailures prometheus.Counter
	Live           prometheus.Gauge
	Requests       prometheus.Counter
	Steps          prometheus.Counter
	Aborts         prometheus.Counter
}

// NewMetrics creates Metrics registered in a new registry.
func NewMetrics(addr string) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Addr:     addr,
		Launches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stepctl_session_launches_total",
			Help: "Console sessions created.",
		}),
		LaunchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stepctl_session_launch_failures_total",
			Help: "Console session creations failed.",
		}),
		Live: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stepctl_sessions_live",
			Help: "Console sessions currently live.",
		}),
		Requests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stepctl_motion_requests_total",
			Help: "Motion requests executed.",
		}),
		Steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stepctl_motion_steps_total",
			Help: "Step pulses emitted.",
		}),
		Aborts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stepctl_motion_aborts_total",
			Help: "Motion requests aborted before completion.",
		}),
	}
	m.Registry.MustRegister(m.Launches, m.LaunchFailures, m.Live,
		m.Requests, m.Steps, m.Aborts)
	return m
}

// Name implements framework.Named.
func (m *Metrics) Name() string {
	return "metrics"
}

// AddToLoop implements LoopAdder.
func (m *Metrics) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvReport, m)
}

// Control implements Controller.
func (m *Metrics) Control(cc fx.ControlContext) error {
	cc.Messages().Each(func(msg fx.Message) bool {
		m.Observe(msg)
		return false
	})
	return nil
}

// Observe updates collectors from a single message.
func (m *Metrics) Observe(msg fx.Message) {
	switch r := msg.(type) {
	case *supervisor.SessionStarted:
		m.Launches.Inc()
		m.Live.Set(1)
	case *supervisor.SessionEnded:
		m.Live.Set(0)
	case *supervisor.LaunchFailed:
		m.LaunchFailures.Inc()
	case *stepper.MotionReport:
		m.Requests.Inc()
		if r.Completed > 0 {
			m.Steps.Add(float64(r.Completed))
		}
		if r.Aborted {
			m.Aborts.Inc()
		}
	}
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Run implements Runnable, serving /metrics when Addr is set.
func (m *Metrics) Run(ctx context.Context) error {
	if m.Addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: m.Addr, Handler: mux}
	glog.Infof("serving metrics on %s", m.Addr)
	return fx.RunWithContextCloser(ctx, server, func() error {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
}
