// Package metrics provides a lightweight, Prometheus-compatible metrics
// collector. It outputs text/plain in Prometheus exposition format without
// requiring the heavy prometheus/client_golang dependency.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the global metrics collector.
var Collector = NewCollector()

// Counters exercised by the dispatch/send pipeline.
var (
	UpdatesReceived = Collector.Counter("ouramate_updates_received_total", "Inbound webhook updates received.")
	UpdatesIgnored  = Collector.Counter("ouramate_updates_ignored_total", "Inbound updates without text content, silently dropped.")
	CommandsHandled = Collector.Counter("ouramate_commands_handled_total", "Chat commands dispatched to a handler.")
	CommandErrors   = Collector.Counter("ouramate_command_errors_total", "Commands that ended in an error reply.")
	Unauthorized    = Collector.Counter("ouramate_unauthorized_total", "Messages rejected by the allowed-chat check.")
	MessagesSent    = Collector.Counter("ouramate_messages_sent_total", "Outbound message chunks delivered.")
	SendFailures    = Collector.Counter("ouramate_send_failures_total", "Outbound chunks that failed to deliver.")
	AIRequests      = Collector.Counter("ouramate_ai_requests_total", "LLM provider invocations.")
	ReportsSent     = Collector.Counter("ouramate_reports_sent_total", "Scheduled daily reports delivered.")
)

// MetricsCollector aggregates counters and gauges.
type MetricsCollector struct {
	mu        sync.Mutex
	counters  map[string]*CounterMetric
	gauges    map[string]*GaugeMetric
	startTime time.Time
}

func NewCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:  make(map[string]*CounterMetric),
		gauges:    make(map[string]*GaugeMetric),
		startTime: time.Now(),
	}
}

// Uptime returns how long the collector has been running.
func (c *MetricsCollector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// CounterMetric is a monotonically increasing counter.
type CounterMetric struct {
	name  string
	help  string
	value atomic.Int64
}

func (c *CounterMetric) Inc()         { c.value.Add(1) }
func (c *CounterMetric) Add(n int64)  { c.value.Add(n) }
func (c *CounterMetric) Value() int64 { return c.value.Load() }

// GaugeMetric is a value that can go up and down.
type GaugeMetric struct {
	name  string
	help  string
	value atomic.Int64
}

func (g *GaugeMetric) Set(v int64)  { g.value.Store(v) }
func (g *GaugeMetric) Inc()         { g.value.Add(1) }
func (g *GaugeMetric) Dec()         { g.value.Add(-1) }
func (g *GaugeMetric) Value() int64 { return g.value.Load() }

// Counter returns the counter with the given name, registering it on
// first use.
func (c *MetricsCollector) Counter(name, help string) *CounterMetric {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.counters[name]; ok {
		return m
	}
	m := &CounterMetric{name: name, help: help}
	c.counters[name] = m
	return m
}

// Gauge returns the gauge with the given name, registering it on first use.
func (c *MetricsCollector) Gauge(name, help string) *GaugeMetric {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.gauges[name]; ok {
		return m
	}
	m := &GaugeMetric{name: name, help: help}
	c.gauges[name] = m
	return m
}

// Handler serves the collected metrics in Prometheus exposition format.
func (c *MetricsCollector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		c.mu.Lock()
		names := make([]string, 0, len(c.counters))
		for name := range c.counters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			m := c.counters[name]
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, m.help, name, name, m.Value())
		}

		gnames := make([]string, 0, len(c.gauges))
		for name := range c.gauges {
			gnames = append(gnames, name)
		}
		sort.Strings(gnames)
		for _, name := range gnames {
			m := c.gauges[name]
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n", name, m.help, name, name, m.Value())
		}
		c.mu.Unlock()

		fmt.Fprintf(w, "# HELP ouramate_uptime_seconds Process uptime.\n# TYPE ouramate_uptime_seconds gauge\nouramate_uptime_seconds %.0f\n", c.Uptime().Seconds())
	})
}
