package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	eventsLoaded         atomic.Int64
	eventBatchesRejected atomic.Int64
	runsCompleted        atomic.Int64
	runsFailed           atomic.Int64
	featuresMaterialized atomic.Int64
	staysWithoutWindow   atomic.Int64
)

func ObserveLoaderCounts(loaded, rejected int) {
	eventsLoaded.Add(int64(loaded))
	eventBatchesRejected.Add(int64(rejected))
}

func ObserveRunOutcome(completed bool, features int) {
	if completed {
		runsCompleted.Add(1)
		featuresMaterialized.Add(int64(features))
	} else {
		runsFailed.Add(1)
	}
}

func ObserveWindowEstimation(withoutSignal int) {
	staysWithoutWindow.Store(int64(withoutSignal))
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP cohortica_loader_events_loaded_total Chart events persisted by the loader.\n")
	fmt.Fprintf(w, "# TYPE cohortica_loader_events_loaded_total counter\n")
	fmt.Fprintf(w, "cohortica_loader_events_loaded_total %d\n", eventsLoaded.Load())

	fmt.Fprintf(w, "# HELP cohortica_loader_batches_rejected_total Event batches rejected by validation.\n")
	fmt.Fprintf(w, "# TYPE cohortica_loader_batches_rejected_total counter\n")
	fmt.Fprintf(w, "cohortica_loader_batches_rejected_total %d\n", eventBatchesRejected.Load())

	fmt.Fprintf(w, "# HELP cohortica_extraction_runs_completed_total Extraction runs finished successfully.\n")
	fmt.Fprintf(w, "# TYPE cohortica_extraction_runs_completed_total counter\n")
	fmt.Fprintf(w, "cohortica_extraction_runs_completed_total %d\n", runsCompleted.Load())

	fmt.Fprintf(w, "# HELP cohortica_extraction_runs_failed_total Extraction runs aborted by an error.\n")
	fmt.Fprintf(w, "# TYPE cohortica_extraction_runs_failed_total counter\n")
	fmt.Fprintf(w, "cohortica_extraction_runs_failed_total %d\n", runsFailed.Load())

	fmt.Fprintf(w, "# HELP cohortica_extraction_features_materialized_total Feature tables rewritten by completed runs.\n")
	fmt.Fprintf(w, "# TYPE cohortica_extraction_features_materialized_total counter\n")
	fmt.Fprintf(w, "cohortica_extraction_features_materialized_total %d\n", featuresMaterialized.Load())

	fmt.Fprintf(w, "# HELP cohortica_window_stays_without_signal Stays with no proxy signal in the latest estimation pass.\n")
	fmt.Fprintf(w, "# TYPE cohortica_window_stays_without_signal gauge\n")
	fmt.Fprintf(w, "cohortica_window_stays_without_signal %d\n", staysWithoutWindow.Load())
}
