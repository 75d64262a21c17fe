package reconnect

import (
	"github.com/spacemeshos/go-vreconnect/metrics"
	"github.com/spacemeshos/go-vreconnect/reconnect/traversal"
)

const (
	subsystem = "reconnect"

	resultOK       = "ok"
	resultFailed   = "failed"
	resultCanceled = "canceled"
)

var (
	metricSessions = metrics.NewCounter(
		"sessions",
		subsystem,
		"number of started reconnect sessions",
		[]string{"role"},
	)
	metricSessionDuration = metrics.NewHistogramWithBuckets(
		"session_duration_seconds",
		subsystem,
		"duration of reconnect sessions",
		[]string{"role", "result"},
		metrics.DurationBuckets,
	)
	metricResponses = metrics.NewCounter(
		"responses",
		subsystem,
		"number of responses sent or received",
		[]string{"role"},
	)
	metricNodes = metrics.NewCounter(
		"nodes",
		subsystem,
		"number of nodes received by learners",
		[]string{"kind"},
	)
	metricRedundantNodes = metrics.NewCounter(
		"redundant_nodes",
		subsystem,
		"number of nodes received by learners after an ancestor was known to be clean",
		[]string{"kind"},
	)
	metricLeafBytes = metrics.NewCounter(
		"leaf_bytes",
		subsystem,
		"size of dirty leaf data received by learners",
		[]string{},
	).WithLabelValues()
	metricStaleRecords = metrics.NewCounter(
		"stale_records",
		subsystem,
		"number of learner leaf records marked for deletion",
		[]string{},
	).WithLabelValues()
	metricInFlight = metrics.NewGauge(
		"in_flight_requests",
		subsystem,
		"number of learner requests waiting for a response",
		[]string{},
	).WithLabelValues()
)

var (
	leafNodes              = metricNodes.WithLabelValues("leaf")
	redundantLeafNodes     = metricRedundantNodes.WithLabelValues("leaf")
	internalNodes          = metricNodes.WithLabelValues("internal")
	redundantInternalNodes = metricRedundantNodes.WithLabelValues("internal")
)

// nodeStats counts received nodes for the session and exports the counts.
type nodeStats struct {
	traversal.Counts
}

var _ traversal.NodeCounter = &nodeStats{}

func (s *nodeStats) IncrementLeafCount() {
	s.Counts.IncrementLeafCount()
	leafNodes.Inc()
}

func (s *nodeStats) IncrementRedundantLeafCount() {
	s.Counts.IncrementRedundantLeafCount()
	redundantLeafNodes.Inc()
}

func (s *nodeStats) IncrementInternalCount() {
	s.Counts.IncrementInternalCount()
	internalNodes.Inc()
}

func (s *nodeStats) IncrementRedundantInternalCount() {
	s.Counts.IncrementRedundantInternalCount()
	redundantInternalNodes.Inc()
}
