package metrics

import (
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Set is a group of metrics registered in one prometheus registry. Metric
// names may carry constant labels in the form foo{bar="baz"}.
type Set struct {
	mu         sync.Mutex
	registry   *prometheus.Registry
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

var defaultSet = NewSet()

func NewSet() *Set {
	return &Set{
		registry:   prometheus.NewRegistry(),
		counters:   map[string]prometheus.Counter{},
		histograms: map[string]prometheus.Histogram{},
	}
}

// Gather collects the current value of every metric created through the
// package level constructors.
func Gather() ([]*dto.MetricFamily, error) {
	return defaultSet.Gather()
}

func (s *Set) Gather() ([]*dto.MetricFamily, error) {
	return s.registry.Gather()
}

func (s *Set) GetOrCreateCounter(name, help string) (prometheus.Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.counters[name]; ok {
		return c, nil
	}
	opts, err := parseOpts(name, help)
	if err != nil {
		return nil, err
	}
	c := prometheus.NewCounter(prometheus.CounterOpts(opts))
	if err := s.registry.Register(c); err != nil {
		return nil, err
	}
	s.counters[name] = c
	return c, nil
}

func (s *Set) GetOrCreateHistogram(name, help string) (prometheus.Histogram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.histograms[name]; ok {
		return h, nil
	}
	opts, err := parseOpts(name, help)
	if err != nil {
		return nil, err
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        opts.Name,
		Help:        opts.Help,
		ConstLabels: opts.ConstLabels,
		Buckets:     prometheus.ExponentialBuckets(0.0001, 4, 12),
	})
	if err := s.registry.Register(h); err != nil {
		return nil, err
	}
	s.histograms[name] = h
	return h, nil
}

// parseOpts splits foo{bar="baz",aaa="b"} into a metric name and its labels.
// An empty help falls back to the name.
func parseOpts(name, help string) (prometheus.Opts, error) {
	opts := prometheus.Opts{Name: name, Help: help}

	if i := strings.IndexByte(name, '{'); i >= 0 {
		if !strings.HasSuffix(name, "}") {
			return opts, fmt.Errorf("metric %q: missing closing brace", name)
		}
		opts.Name = name[:i]
		opts.ConstLabels = prometheus.Labels{}

		if body := name[i+1 : len(name)-1]; body != "" {
			for _, pair := range strings.Split(body, ",") {
				k, v, ok := strings.Cut(pair, "=")
				if !ok {
					return opts, fmt.Errorf("metric %q: malformed label %q", name, pair)
				}
				k = strings.TrimSpace(k)
				v = strings.TrimSpace(v)
				if len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
					return opts, fmt.Errorf("metric %q: label %q value must be quoted", name, k)
				}
				opts.ConstLabels[k] = v[1 : len(v)-1]
			}
		}
	}
	if opts.Help == "" {
		opts.Help = opts.Name
	}
	return opts, nil
}
