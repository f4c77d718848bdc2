package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfoOnce sync.Once

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Inkwell API build information.",
		},
		[]string{"version", "store", "media"},
	)
)

// InitBuildInfo registers build_info once and sets build_info{version,store,media} 1.
func InitBuildInfo(version, store, media string) {
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfo)
	})
	buildInfo.WithLabelValues(version, store, media).Set(1)
}
