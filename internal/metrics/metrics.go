package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	jobsLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gosh",
		Name:      "jobs_live",
		Help:      "Number of jobs currently tracked in the job table.",
	})

	jobsLaunched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gosh",
		Name:      "jobs_launched_total",
		Help:      "Total number of pipelines spawned as jobs.",
	})

	spawnFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gosh",
		Name:      "spawn_failures_total",
		Help:      "Total number of pipelines that failed to spawn completely.",
	})

	processesReaped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gosh",
		Name:      "processes_reaped_total",
		Help:      "Total number of child status changes collected, by outcome.",
	}, []string{"outcome"})

	builtinCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gosh",
		Name:      "builtin_calls_total",
		Help:      "Total number of builtin command invocations, by name.",
	}, []string{"name"})

	foregroundWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gosh",
		Name:      "foreground_wait_seconds",
		Help:      "Time spent waiting for foreground jobs in seconds.",
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gosh",
		Name:      "build_info",
		Help:      "Build metadata for the running gosh binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(jobsLive, jobsLaunched, spawnFailures, processesReaped, builtinCalls, foregroundWait, buildInfo)
}

// Registry returns the Prometheus registry containing all gosh metrics.
func Registry() *prometheus.Registry {
	return registry
}

// SetJobsLive records the current size of the job table.
func SetJobsLive(n int) {
	if n < 0 {
		return
	}
	jobsLive.Set(float64(n))
}

// IncJobLaunched increments the launched-pipeline counter by one.
func IncJobLaunched() {
	jobsLaunched.Inc()
}

// IncSpawnFailure increments the failed-spawn counter by one.
func IncSpawnFailure() {
	spawnFailures.Inc()
}

// AddProcessReaped records one collected child status change. The outcome
// label is one of "exited", "signaled", "stopped" or "continued".
func AddProcessReaped(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	processesReaped.WithLabelValues(outcome).Inc()
}

// IncBuiltin increments the invocation counter for the named builtin.
func IncBuiltin(name string) {
	if name == "" {
		return
	}
	builtinCalls.WithLabelValues(name).Inc()
}

// ObserveForegroundWait records how long the shell waited for a foreground job.
func ObserveForegroundWait(d time.Duration) {
	if d < 0 {
		return
	}
	foregroundWait.Observe(d.Seconds())
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
