package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "docrefine"

// Refinement outcomes
const (
	OutcomeOK          = "ok"
	OutcomeSoftError   = "soft_error"
	OutcomeBreakerOpen = "breaker_open"
	OutcomeFailed      = "failed"
)

// Metrics holds the collectors for one process. Each instance owns its own
// registry so tests never share state.
type Metrics struct {
	startTime time.Time
	registry  *prometheus.Registry

	documents      *prometheus.CounterVec
	pages          prometheus.Counter
	ocrConfidence  prometheus.Histogram
	ocrDuration    prometheus.Histogram
	cacheLookups   *prometheus.CounterVec
	refineRequests *prometheus.CounterVec
	refineDuration *prometheus.HistogramVec
	outputRenames  prometheus.Counter
	pathRejections prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		startTime: time.Now(),
		registry:  reg,

		documents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents processed by outcome",
		}, []string{"outcome"}),
		pages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Pages passed to the OCR engine",
		}),
		ocrConfidence: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ocr_confidence",
			Help:      "Aggregate OCR confidence per document",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		ocrDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ocr_duration_seconds",
			Help:      "Time spent in the OCR engine per document",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ocr_cache_lookups_total",
			Help:      "OCR cache lookups by result",
		}, []string{"result"}),
		refineRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refine_requests_total",
			Help:      "Model service refinement calls by task and outcome",
		}, []string{"task", "outcome"}),
		refineDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refine_duration_seconds",
			Help:      "Model service latency per task",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"task"}),
		outputRenames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_renames_total",
			Help:      "Results written under a suffixed name because the target existed",
		}),
		pathRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "path_rejections_total",
			Help:      "API requests rejected for paths outside the input directory",
		}),
	}
}

func (m *Metrics) RecordDocument(success bool) {
	if success {
		m.documents.WithLabelValues(OutcomeOK).Inc()
	} else {
		m.documents.WithLabelValues(OutcomeFailed).Inc()
	}
}

func (m *Metrics) RecordOCR(pages int, confidence float64, d time.Duration) {
	m.pages.Add(float64(pages))
	m.ocrConfidence.Observe(confidence)
	m.ocrDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) RecordRefine(task, outcome string, d time.Duration) {
	m.refineRequests.WithLabelValues(task, outcome).Inc()
	m.refineDuration.WithLabelValues(task).Observe(d.Seconds())
}

func (m *Metrics) RecordOutputRename() {
	m.outputRenames.Inc()
}

func (m *Metrics) RecordPathRejection() {
	m.pathRejections.Inc()
}

// Registry exposes the underlying registry for custom gatherers
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry for the node_exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

type Snapshot struct {
	Uptime            time.Duration `json:"uptime"`
	DocumentsOK       int64         `json:"documents_ok"`
	DocumentsFailed   int64         `json:"documents_failed"`
	Pages             int64         `json:"pages"`
	CacheHits         int64         `json:"cache_hits"`
	CacheMisses       int64         `json:"cache_misses"`
	RefineRequests    int64         `json:"refine_requests"`
	RefineSoftErrors  int64         `json:"refine_soft_errors"`
	OutputRenames     int64         `json:"output_renames"`
	PathRejections    int64         `json:"path_rejections"`
	RefineSuccessRate float64       `json:"refine_success_rate"`
}

func (m *Metrics) Snapshot() *Snapshot {
	s := &Snapshot{Uptime: time.Since(m.startTime)}

	families, err := m.registry.Gather()
	if err != nil {
		return s
	}

	for _, mf := range families {
		switch mf.GetName() {
		case namespace + "_documents_total":
			s.DocumentsOK = sumCounter(mf, "outcome", OutcomeOK)
			s.DocumentsFailed = sumCounter(mf, "outcome", OutcomeFailed)
		case namespace + "_pages_total":
			s.Pages = sumCounter(mf, "", "")
		case namespace + "_ocr_cache_lookups_total":
			s.CacheHits = sumCounter(mf, "result", "hit")
			s.CacheMisses = sumCounter(mf, "result", "miss")
		case namespace + "_refine_requests_total":
			s.RefineRequests = sumCounter(mf, "", "")
			s.RefineSoftErrors = sumCounter(mf, "outcome", OutcomeSoftError) +
				sumCounter(mf, "outcome", OutcomeBreakerOpen)
		case namespace + "_output_renames_total":
			s.OutputRenames = sumCounter(mf, "", "")
		case namespace + "_path_rejections_total":
			s.PathRejections = sumCounter(mf, "", "")
		}
	}

	if s.RefineRequests > 0 {
		ok := s.RefineRequests - s.RefineSoftErrors
		s.RefineSuccessRate = float64(ok) / float64(s.RefineRequests) * 100
	}

	return s
}

// sumCounter adds up counter samples in mf, optionally restricted to samples
// whose label equals value.
func sumCounter(mf *dto.MetricFamily, label, value string) int64 {
	var total float64
	for _, metric := range mf.GetMetric() {
		if label != "" && !hasLabel(metric, label, value) {
			continue
		}
		total += metric.GetCounter().GetValue()
	}
	return int64(total)
}

func hasLabel(metric *dto.Metric, name, value string) bool {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}
