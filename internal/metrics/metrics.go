// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Avalanche-io/edl-changelog/changelog"
)

var (
	initOnce sync.Once

	comparisonsTotalCounter   *prometheus.CounterVec
	changesTotalCounter       *prometheus.CounterVec
	eventsDroppedCounter      prometheus.Counter
	compareDurationMetric     prometheus.Histogram
	keyCollisionsTotalCounter prometheus.Counter
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		comparisonsTotalCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edl_comparisons_total",
				Help: "Total number of EDL comparisons by outcome.",
			},
			[]string{"outcome"},
		)

		changesTotalCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edl_changes_total",
				Help: "Total number of changelog rows by status.",
			},
			[]string{"status"},
		)

		eventsDroppedCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "edl_events_dropped_total",
				Help: "Total number of event headers dropped for invalid timecodes.",
			},
		)

		compareDurationMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "edl_compare_duration_seconds",
				Help:    "Duration of parse, diff and build for one comparison in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		keyCollisionsTotalCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "edl_key_collisions_total",
				Help: "Total number of events shadowed by another event with the same key.",
			},
		)

		prometheus.MustRegister(
			comparisonsTotalCounter,
			changesTotalCounter,
			eventsDroppedCounter,
			compareDurationMetric,
			keyCollisionsTotalCounter,
		)

		for _, outcome := range []string{"ok", "error"} {
			comparisonsTotalCounter.WithLabelValues(outcome)
		}
		for _, status := range []changelog.Status{
			changelog.StatusNew,
			changelog.StatusRemoved,
			changelog.StatusModified,
		} {
			changesTotalCounter.WithLabelValues(string(status))
		}
	})
}

func IncComparison(outcome string) {
	Init()
	comparisonsTotalCounter.WithLabelValues(outcome).Inc()
}

func AddChanges(s changelog.Summary) {
	Init()
	changesTotalCounter.WithLabelValues(string(changelog.StatusNew)).Add(float64(s.New))
	changesTotalCounter.WithLabelValues(string(changelog.StatusRemoved)).Add(float64(s.Removed))
	changesTotalCounter.WithLabelValues(string(changelog.StatusModified)).Add(float64(s.Modified))
}

func AddEventsDropped(n int) {
	Init()
	eventsDroppedCounter.Add(float64(n))
}

func AddKeyCollisions(n int) {
	Init()
	keyCollisionsTotalCounter.Add(float64(n))
}

func ObserveCompareDuration(d time.Duration) {
	Init()
	compareDurationMetric.Observe(d.Seconds())
}
