package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if crawlerJobsTotal == nil || crawlerPapersTotal == nil ||
		crawlerFetchAttemptsTotal == nil || httpRequestsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObservers(t *testing.T) {
	Init()

	ObserveJob("completed")
	if val := testutil.ToFloat64(crawlerJobsTotal.WithLabelValues("completed")); val < 1 {
		t.Errorf("expected crawlerJobsTotal{completed} >= 1, got %f", val)
	}

	ObservePaperUpsert("acl", true)
	ObservePaperUpsert("acl", false)
	if val := testutil.ToFloat64(crawlerPapersTotal.WithLabelValues("acl", "created")); val < 1 {
		t.Errorf("expected crawlerPapersTotal{acl,created} >= 1, got %f", val)
	}
	if val := testutil.ToFloat64(crawlerPapersTotal.WithLabelValues("acl", "updated")); val < 1 {
		t.Errorf("expected crawlerPapersTotal{acl,updated} >= 1, got %f", val)
	}

	ObserveFetchAttempt("acl", "retry")
	if val := testutil.ToFloat64(crawlerFetchAttemptsTotal.WithLabelValues("acl", "retry")); val < 1 {
		t.Errorf("expected crawlerFetchAttemptsTotal{acl,retry} >= 1, got %f", val)
	}

	ObserveRateLimitDelay("acl", 100*time.Millisecond)
	if val := testutil.CollectAndCount(crawlerRateLimitDelaysSeconds); val <= 0 {
		t.Errorf("expected crawlerRateLimitDelaysSeconds to be observed, got %d", val)
	}

	IncActiveWorkers()
	DecActiveWorkers()
}
