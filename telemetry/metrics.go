// Package telemetry records the training job's metrics on a private
// Prometheus registry. A batch job has no scrape endpoint, so the registry
// is written out in the text exposition format for a node exporter's
// textfile collector.
package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/YuminosukeSato/bikeshare/pkg/errors"
)

const namespace = "bikeshare"

// Stage labels used with SetRows and ObserveStage.
const (
	StageReadTrips    = "read_trips"
	StageReadStations = "read_stations"
	StageClean        = "clean"
	StageFeatures     = "features"
	StageTrain        = "train"
	StageTest         = "test"
	StagePublish      = "publish"
)

// Recorder holds the job metrics.
type Recorder struct {
	registry *prometheus.Registry

	rows          *prometheus.GaugeVec
	stageDuration *prometheus.HistogramVec
	foldDuration  prometheus.Histogram
	fitsTotal     prometheus.Counter
	cvRMSE        *prometheus.GaugeVec
	holdoutRMSE   prometheus.Gauge
	lastSuccess   prometheus.Gauge
	lastRunOK     prometheus.Gauge
}

// NewRecorder creates a Recorder on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		rows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows",
			Help:      "Number of rows after each stage of the last run",
		}, []string{"stage"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each job stage in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"stage"}),
		foldDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cv_fold_duration_seconds",
			Help:      "Wall time of one cross-validation fit/evaluate cycle in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		fitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cv_fits_total",
			Help:      "Total number of cross-validation fit/evaluate cycles",
		}),
		cvRMSE: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cv_rmse",
			Help:      "Mean cross-validated RMSE per grid candidate",
		}, []string{"candidate", "params"}),
		holdoutRMSE: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "holdout_rmse",
			Help:      "RMSE of the winning candidate on the held-out split",
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
		lastRunOK: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run succeeded, 0 otherwise",
		}),
	}
}

// Registry returns the registry the metrics live on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// SetRows records the row count after stage.
func (r *Recorder) SetRows(stage string, n int) {
	r.rows.WithLabelValues(stage).Set(float64(n))
}

// ObserveStage records the wall time of stage.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveFold records one cross-validation cycle. It is safe for
// concurrent use.
func (r *Recorder) ObserveFold(_, _ int, _ float64, elapsed time.Duration) {
	r.fitsTotal.Inc()
	r.foldDuration.Observe(elapsed.Seconds())
}

// SetCV records the mean metric of every candidate.
func (r *Recorder) SetCV(params []string, avg []float64) {
	for c, v := range avg {
		label := ""
		if c < len(params) {
			label = params[c]
		}
		r.cvRMSE.WithLabelValues(strconv.Itoa(c), label).Set(v)
	}
}

// SetHoldout records the held-out RMSE.
func (r *Recorder) SetHoldout(v float64) {
	r.holdoutRMSE.Set(v)
}

// SetOutcome records whether the run succeeded.
func (r *Recorder) SetOutcome(ok bool, at time.Time) {
	if !ok {
		r.lastRunOK.Set(0)
		return
	}
	r.lastRunOK.Set(1)
	r.lastSuccess.Set(float64(at.Unix()))
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrapf(err, "write metrics to %s", path)
	}
	return nil
}
