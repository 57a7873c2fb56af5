package partition

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/strollhq/stroll-history/go/wire"
)

var scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stroll_partition_scans_total",
	Help: "counter of partition scans by row kind and outcome",
}, []string{"kind", "outcome"})

var rowsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stroll_partition_rows_dropped_total",
	Help: "counter of rows dropped during normalization, by row kind",
}, []string{"kind"})

// scanOutcome labels a terminal scan error for metrics.
func scanOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch wire.AsError(err).Kind {
	case wire.KindScanTimeout:
		return "timeout"
	case wire.KindPartitionCorrupt, wire.KindPartitionMissing:
		return "corrupt"
	case wire.KindDataError:
		return "data_error"
	default:
		return "error"
	}
}
