// Package metrics exposes hub and node health as Prometheus gauges/counters,
// grounded on orbas1-Synnergy's HealthLogger: a private registry, a small
// set of named collectors, and a plain-HTTP /metrics endpoint.
package metrics

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func serve(addr string, reg *prometheus.Registry, log *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("metrics: server stopped")
		}
	}()
}

// Hub tracks the gauges and counters a hub's dispatcher and registry update
// as queries are served (spec §4.7-4.8).
type Hub struct {
	registry     *prometheus.Registry
	peersGauge   prometheus.Gauge
	queriesTotal prometheus.Counter
	foundTotal   prometheus.Counter
}

func NewHub() *Hub {
	reg := prometheus.NewRegistry()
	h := &Hub{
		registry: reg,
		peersGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "samizdat_hub_peers",
			Help: "Nodes currently registered with this hub.",
		}),
		queriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "samizdat_hub_queries_total",
			Help: "Queries dispatched to candidate peers.",
		}),
		foundTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "samizdat_hub_queries_found_total",
			Help: "Queries that resolved to at least one candidate.",
		}),
	}
	reg.MustRegister(h.peersGauge, h.queriesTotal, h.foundTotal)
	return h
}

func (h *Hub) SetPeers(n int) { h.peersGauge.Set(float64(n)) }

func (h *Hub) ObserveQuery(found bool) {
	h.queriesTotal.Inc()
	if found {
		h.foundTotal.Inc()
	}
}

// Serve starts the /metrics endpoint on port in the background.
func (h *Hub) Serve(port int, log *logrus.Logger) {
	serve(fmt.Sprintf(":%d", port), h.registry, log)
}

// Node tracks the gauges and counters a node's RPC server and transfer
// starter update (spec §4.9).
type Node struct {
	registry     *prometheus.Registry
	resolveTotal prometheus.Counter
	foundTotal   prometheus.Counter
	pushesTotal  prometheus.Counter
}

func NewNode() *Node {
	reg := prometheus.NewRegistry()
	n := &Node{
		registry: reg,
		resolveTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "samizdat_node_resolve_total",
			Help: "Resolve calls received from a hub.",
		}),
		foundTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "samizdat_node_resolve_found_total",
			Help: "Resolve calls answered FOUND.",
		}),
		pushesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "samizdat_node_pushes_total",
			Help: "Content pushes started after a FOUND resolve.",
		}),
	}
	reg.MustRegister(n.resolveTotal, n.foundTotal, n.pushesTotal)
	return n
}

func (n *Node) ObserveResolve(found bool) {
	n.resolveTotal.Inc()
	if found {
		n.foundTotal.Inc()
	}
}

func (n *Node) ObservePush() { n.pushesTotal.Inc() }

// Serve starts the /metrics endpoint on port in the background.
func (n *Node) Serve(port int, log *logrus.Logger) {
	serve(fmt.Sprintf(":%d", port), n.registry, log)
}
