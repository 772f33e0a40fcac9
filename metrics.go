package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tereborace.com/painelos/ordens"
)

// ==== Métricas (Prometheus) ====

type metrics struct {
	reg         *prometheus.Registry
	loads       *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	records     *prometheus.GaugeVec
	cacheLookup *prometheus.CounterVec
	reqDur      *prometheus.HistogramVec
}

// newMetrics usa un rexistro propio para que os tests poidan crear varios servidores.
func newMetrics() *metrics {
	m := &metrics{reg: prometheus.NewRegistry()}
	m.loads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "painelos",
		Name:      "loads_total",
		Help:      "Cargas de ficheiros por perfil e resultado",
	}, []string{"profile", "result"})
	m.dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "painelos",
		Name:      "dropped_rows_total",
		Help:      "Filas descartadas por data de criación inválida",
	}, []string{"profile"})
	m.records = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "painelos",
		Name:      "records",
		Help:      "Rexistros do último dataset cargado",
	}, []string{"profile"})
	m.cacheLookup = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "painelos",
		Name:      "cache_lookups_total",
		Help:      "Consultas á cache de datasets",
	}, []string{"result"})
	m.reqDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "painelos",
		Name:      "http_request_duration_seconds",
		Help:      "Duración das peticións HTTP por ruta",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	m.reg.MustRegister(
		m.loads, m.dropped, m.records, m.cacheLookup, m.reqDur,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// instrument mide a duración de h baixo a etiqueta route.
func (m *metrics) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	obs := m.reqDur.WithLabelValues(route)
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() { obs.Observe(time.Since(start).Seconds()) }()
		h(w, r)
	}
}

// observeLoad conta unha carga; ds é nil se fallou.
func (m *metrics) observeLoad(profile string, ds *ordens.Dataset, cached bool, err error) {
	switch {
	case err != nil:
		kind := ordens.ErrorKind(err)
		if kind == "" {
			kind = "other"
		}
		m.loads.WithLabelValues(profile, "error_"+kind).Inc()
		return
	case cached:
		m.loads.WithLabelValues(profile, "cached").Inc()
	default:
		m.loads.WithLabelValues(profile, "ok").Inc()
		m.dropped.WithLabelValues(profile).Add(float64(ds.Dropped))
	}
	m.records.WithLabelValues(profile).Set(float64(ds.Len()))
}

func (m *metrics) observeCache(hit bool) {
	if hit {
		m.cacheLookup.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookup.WithLabelValues("miss").Inc()
}
