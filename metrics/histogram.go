package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Histogram interface {
	prometheus.Histogram
	// ObserveDuration observes the seconds elapsed since start
	ObserveDuration(start time.Time)
}

type histogram struct {
	prometheus.Histogram
}

func (h *histogram) ObserveDuration(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// GetOrCreateHistogram returns the histogram registered under name, creating
// it on first use. Buckets are exponential from 100µs up.
func GetOrCreateHistogram(name, help string) Histogram {
	h, err := defaultSet.GetOrCreateHistogram(name, help)
	if err != nil {
		panic(fmt.Errorf("could not get or create new histogram: %w", err))
	}
	return &histogram{h}
}
