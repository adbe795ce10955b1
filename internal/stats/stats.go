// Package stats publishes the chat server's runtime gauges over expvar.
// Hot paths hand deltas to a single goroutine, so routing code never
// contends on the expvar map.
package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"
)

// Metric names one published gauge.
type Metric string

// Gauges maintained by the session core.
const (
	NumSessions        Metric = "NumSessions"
	NumActiveRooms     Metric = "NumActiveRooms"
	NumDirectMessages  Metric = "NumDirectMessages"
	NumChannelMessages Metric = "NumChannelMessages"
)

type StatsProvider interface {
	Incr(m Metric)
	Decr(m Metric)
	RegisterMetric(m Metric)
	Run()
}

type delta struct {
	metric Metric
	value  int64
}

type StatsUpdater struct {
	vars    *expvar.Map
	updates chan delta
}

func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		vars:    expvar.NewMap("converse"),
		updates: make(chan delta, 512),
	}
	mux.HandleFunc("GET /debug/vars", su.serveVars)

	start := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(start).Milliseconds()
	}))

	return su
}

func (su *StatsUpdater) serveVars(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	out := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var v any
		json.Unmarshal([]byte(kv.Value.String()), &v)
		out[kv.Key] = v
	})

	json.NewEncoder(w).Encode(out)
}

// RegisterMetric publishes the gauge at zero so it is visible before
// the first update.
func (su *StatsUpdater) RegisterMetric(m Metric) {
	su.vars.Set(string(m), new(expvar.Int))
}

func (su *StatsUpdater) Incr(m Metric) {
	su.updates <- delta{metric: m, value: 1}
}

func (su *StatsUpdater) Decr(m Metric) {
	su.updates <- delta{metric: m, value: -1}
}

// Run starts the goroutine that applies queued deltas.
func (su *StatsUpdater) Run() {
	go su.apply()
}

func (su *StatsUpdater) apply() {
	for d := range su.updates {
		// Add creates the gauge on first touch, so an unregistered
		// metric still shows up rather than being lost.
		su.vars.Add(string(d.metric), d.value)
	}
}

func (su *StatsUpdater) Stop() {
	close(su.updates)
}
