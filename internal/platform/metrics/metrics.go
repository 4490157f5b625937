// Package metrics holds process-level Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var buildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "custos_build_info",
	Help: "Build metadata, value is always 1.",
}, []string{"version"})

// SetBuildInfo publishes the running version as a labelled gauge.
func SetBuildInfo(version string) {
	buildInfo.WithLabelValues(version).Set(1)
}
