package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsTotal, jobsInFlight) }

var jobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coordinator_jobs_total",
		Help: "Jobs reaching a terminal state, labeled by status and type.",
	},
	[]string{"status", "type"},
)

var jobsInFlight = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "coordinator_jobs_in_flight",
		Help: "Jobs currently pending, assigned or running.",
	},
)

func IncJobTerminal(status, jobType string) {
	jobsTotal.WithLabelValues(norm(status), norm(jobType)).Inc()
}

func JobAdmitted() { jobsInFlight.Inc() }
func JobFinished() { jobsInFlight.Dec() }
