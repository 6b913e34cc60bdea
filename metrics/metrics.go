// Copyright 2024 The dscan Authors
// This file is part of the dscan library.
//
// The dscan library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The dscan library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the dscan library. If not, see <http://www.gnu.org/licenses/>.

// Package metrics bridges an in-process rcrowley/go-metrics registry (the
// teacher tree's own instrumentation library) to Prometheus, so operators
// get a /metrics endpoint without every package needing a direct Prometheus
// dependency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	gometrics "github.com/rcrowley/go-metrics"
)

// Registry is the process-wide go-metrics registry every gauge registers
// into.
var Registry = gometrics.NewRegistry()

// GaugeCollector adapts one named go-metrics gauge into a Prometheus
// collector, so Registry doesn't need a parallel Prometheus-native gauge
// kept in sync by hand.
type GaugeCollector struct {
	name  string
	help  string
	gauge gometrics.Gauge
}

// NewGauge registers a new go-metrics gauge under name and returns a
// collector for it plus a setter function.
func NewGauge(name, help string) (*GaugeCollector, func(int64)) {
	g := gometrics.NewGauge()
	Registry.Register(name, g)
	c := &GaugeCollector{name: name, help: help, gauge: g}
	prometheus.MustRegister(c)
	return c, g.Update
}

func (c *GaugeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- prometheus.NewDesc(c.name, c.help, nil, nil)
}

func (c *GaugeCollector) Collect(ch chan<- prometheus.Metric) {
	desc := prometheus.NewDesc(c.name, c.help, nil, nil)
	ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(c.gauge.Value()))
}

// Serve starts the blocking Prometheus /metrics HTTP listener on addr.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
