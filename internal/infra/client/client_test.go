package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/veyralabs/fundmatch-go/internal/domain"
	"github.com/veyralabs/fundmatch-go/internal/infra/client"
	"github.com/veyralabs/fundmatch-go/internal/infra/observability"
	"github.com/veyralabs/fundmatch-go/internal/infra/resilience"
)

func newProfileClient(t *testing.T, baseURL string) (*client.ProfileStoreClient, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics()
	c := client.NewProfileStoreClient(&http.Client{Timeout: time.Second}, baseURL,
		resilience.NewCircuitBreaker("test-profile"),
		resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond},
		metrics)
	return c, metrics
}

func externalErrorSeries(t *testing.T, metrics *observability.Metrics) int {
	t.Helper()
	n, err := testutil.GatherAndCount(metrics.Registry, "fundmatch_external_errors_total")
	if err != nil {
		t.Fatalf("gathering metrics: %v", err)
	}
	return n
}

func TestGetProfile_UpstreamFailureWrappedAndCounted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, metrics := newProfileClient(t, srv.URL)

	_, err := c.GetProfile(context.Background(), "p1")
	var external *domain.ErrExternalService
	if !errors.As(err, &external) {
		t.Fatalf("expected ExternalService, got %v", err)
	}
	if got := externalErrorSeries(t, metrics); got != 1 {
		t.Errorf("expected one external-error series after the failure, got %d", got)
	}
}

func TestGetProfile_NotFoundIsNotAnExternalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, metrics := newProfileClient(t, srv.URL)

	_, err := c.GetProfile(context.Background(), "ghost")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if got := externalErrorSeries(t, metrics); got != 0 {
		t.Errorf("a 404 must not count as an external error, got %d series", got)
	}
}
