package execshell

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespaceConstant          = "procexec"
	runsTotalMetricNameConstant       = "runs_total"
	runDurationMetricNameConstant     = "run_duration_seconds"
	recordsTotalMetricNameConstant    = "records_total"
	activeProcessesMetricNameConstant = "active_processes"
	spawnFailuresMetricNameConstant   = "spawn_failures_total"
	metricLabelOutcomeConstant        = "outcome"
	metricLabelKindConstant           = "kind"
	metricLabelCommandConstant        = "command"
)

// MetricsRecorder exposes Prometheus metrics for process runs.
// A nil recorder ignores every observation.
type MetricsRecorder struct {
	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	recordsTotal    *prometheus.CounterVec
	activeProcesses prometheus.Gauge
	spawnFailures   *prometheus.CounterVec
}

// NewMetricsRecorder creates the collectors and registers them with registerer.
// Collectors already registered under the same names are reused.
func NewMetricsRecorder(registerer prometheus.Registerer) (*MetricsRecorder, error) {
	recorder := &MetricsRecorder{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespaceConstant,
				Name:      runsTotalMetricNameConstant,
				Help:      "Completed process runs by outcome",
			},
			[]string{metricLabelCommandConstant, metricLabelOutcomeConstant},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespaceConstant,
				Name:      runDurationMetricNameConstant,
				Help:      "Wall time between spawn and termination",
				Buckets:   prometheus.ExponentialBuckets(0.005, 4, 10),
			},
			[]string{metricLabelCommandConstant},
		),
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespaceConstant,
				Name:      recordsTotalMetricNameConstant,
				Help:      "IO records observed by stream kind",
			},
			[]string{metricLabelKindConstant},
		),
		activeProcesses: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespaceConstant,
				Name:      activeProcessesMetricNameConstant,
				Help:      "Processes currently running",
			},
		),
		spawnFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespaceConstant,
				Name:      spawnFailuresMetricNameConstant,
				Help:      "Executables that could not be spawned by failure kind",
			},
			[]string{metricLabelKindConstant},
		),
	}

	var registrationError error
	recorder.runsTotal = registerOrReuse(registerer, recorder.runsTotal, &registrationError)
	recorder.runDuration = registerOrReuse(registerer, recorder.runDuration, &registrationError)
	recorder.recordsTotal = registerOrReuse(registerer, recorder.recordsTotal, &registrationError)
	recorder.activeProcesses = registerOrReuse(registerer, recorder.activeProcesses, &registrationError)
	recorder.spawnFailures = registerOrReuse(registerer, recorder.spawnFailures, &registrationError)
	if registrationError != nil {
		return nil, registrationError
	}
	return recorder, nil
}

func registerOrReuse[CollectorType prometheus.Collector](registerer prometheus.Registerer, collector CollectorType, firstError *error) CollectorType {
	if registerer == nil || *firstError != nil {
		return collector
	}
	registrationError := registerer.Register(collector)
	if registrationError == nil {
		return collector
	}
	var alreadyRegistered prometheus.AlreadyRegisteredError
	if errors.As(registrationError, &alreadyRegistered) {
		if existing, sameType := alreadyRegistered.ExistingCollector.(CollectorType); sameType {
			return existing
		}
	}
	*firstError = registrationError
	return collector
}

// ProcessStarted increments the active process gauge.
func (recorder *MetricsRecorder) ProcessStarted() {
	if recorder == nil {
		return
	}
	recorder.activeProcesses.Inc()
}

// ProcessFinished records the outcome and duration of a run.
func (recorder *MetricsRecorder) ProcessFinished(executable Executable, exitState ExitState) {
	if recorder == nil {
		return
	}
	recorder.activeProcesses.Dec()
	commandLabel := string(executable.Command())
	recorder.runsTotal.WithLabelValues(commandLabel, string(exitState.Outcome)).Inc()
	recorder.runDuration.WithLabelValues(commandLabel).Observe(exitState.Duration().Seconds())
}

// SpawnFailed counts an executable that never started.
func (recorder *MetricsRecorder) SpawnFailed(kind SpawnErrorKind) {
	if recorder == nil {
		return
	}
	recorder.spawnFailures.WithLabelValues(string(kind)).Inc()
}

// Process implements Processor by counting records per kind.
func (recorder *MetricsRecorder) Process(_ *ProcessHandle, record IORecord) {
	if recorder == nil {
		return
	}
	recorder.recordsTotal.WithLabelValues(record.Kind().String()).Inc()
}
