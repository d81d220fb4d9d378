// Package metrics exposes pipeline counters through Prometheus.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "docpipe"

// Metrics groups the pipeline's counters.
type Metrics struct {
	uploads      prometheus.Counter
	cacheLookups *prometheus.CounterVec
	extractions  *prometheus.CounterVec
	markerItems  *prometheus.CounterVec
	embeddings   *prometheus.CounterVec
	embedSkipped prometheus.Counter
	cascadeSteps *prometheus.CounterVec
}

// New creates the counters and registers them on reg.
// A nil reg leaves the counters unregistered, which is useful in tests.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Uploads stored.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_cache_lookups_total",
			Help:      "Canonical text lookups by result (hit or miss).",
		}, []string{"result"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Extractor runs by file tag and outcome.",
		}, []string{"tag", "outcome"}),
		markerItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "marker_items_total",
			Help:      "Uploads processed by marker derivation, by outcome.",
		}, []string{"outcome"}),
		embeddings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embeddings_total",
			Help:      "Vectors produced, by strategy.",
		}, []string{"strategy"}),
		embedSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embeddings_skipped_total",
			Help:      "Marker values too short to embed.",
		}),
		cascadeSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_steps_total",
			Help:      "Cascade deletion steps by artifact and outcome.",
		}, []string{"artifact", "outcome"}),
	}

	if reg != nil {
		for _, c := range m.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.uploads, m.cacheLookups, m.extractions, m.markerItems,
		m.embeddings, m.embedSkipped, m.cascadeSteps,
	}
}

// UploadStored counts a stored upload.
func (m *Metrics) UploadStored() {
	if m == nil {
		return
	}
	m.uploads.Inc()
}

// CacheHit counts a canonical text served from the cache.
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Inc()
}

// CacheMiss counts a canonical text that had to be extracted.
func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// Extraction counts one extractor run.
func (m *Metrics) Extraction(tag string, err error) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(tag, outcome(err)).Inc()
}

// MarkerItem counts one upload processed by marker derivation.
func (m *Metrics) MarkerItem(result string) {
	if m == nil {
		return
	}
	m.markerItems.WithLabelValues(result).Inc()
}

// Embedded counts a vector produced by the named strategy.
func (m *Metrics) Embedded(strategy string) {
	if m == nil {
		return
	}
	m.embeddings.WithLabelValues(strategy).Inc()
}

// EmbedSkipped counts a marker value too short to embed.
func (m *Metrics) EmbedSkipped() {
	if m == nil {
		return
	}
	m.embedSkipped.Inc()
}

// CascadeStep counts one cascade step.
func (m *Metrics) CascadeStep(artifact, result string) {
	if m == nil {
		return
	}
	m.cascadeSteps.WithLabelValues(artifact, result).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
