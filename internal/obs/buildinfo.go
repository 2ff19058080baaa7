package obs

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfoOnce sync.Once

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "aibridge",
			Name:      "build_info",
			Help:      "Gateway build information; constant 1.",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// InitBuildInfo registers aibridge_build_info once and sets the labels of the
// running binary. Empty version or commit are reported as "dev" and "unknown".
func InitBuildInfo(version, commit string) {
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfo)
	})
	if version == "" {
		version = "dev"
	}
	if commit == "" {
		commit = "unknown"
	}
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}
