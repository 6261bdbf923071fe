// Package client holds the HTTP adapters for the engine's external
// collaborators: the profile store, the match store and the quota service.
// Every call goes through retry with backoff and a per-service circuit
// breaker; failures surface as ErrExternalService with the cause attached.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/veyralabs/fundmatch-go/internal/domain"
	"github.com/veyralabs/fundmatch-go/internal/infra/observability"
	"github.com/veyralabs/fundmatch-go/internal/infra/resilience"
)

var tracer = otel.Tracer("client")

// wrapExternal translates transport-layer failures into the domain error
// taxonomy and counts them per service. An open breaker becomes
// ErrCircuitOpen so handlers can answer 503 instead of a generic upstream
// failure.
func wrapExternal(metrics *observability.Metrics, service string, err error) error {
	metrics.IncrExternalError(service)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: service}
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}

// ProfileStoreClient reads profiles from the Profile API.
type ProfileStoreClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	metrics    *observability.Metrics
}

// NewProfileStoreClient creates a new ProfileStoreClient.
func NewProfileStoreClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics) *ProfileStoreClient {
	return &ProfileStoreClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
		metrics:    metrics,
	}
}

// GetProfile fetches one profile with retry, circuit breaker and tracing.
// A 404 is final: it maps to ErrNotFound and is never retried.
func (c *ProfileStoreClient) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "ProfileStoreClient.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("profile.id", id))

	var (
		profile  domain.Profile
		notFound bool
	)

	_, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			u := fmt.Sprintf("%s/v1/profiles/%s", c.baseURL, url.PathEscape(id))
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return err
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				notFound = true
				return nil
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("profile API returned status %d", resp.StatusCode)
			}

			return json.NewDecoder(resp.Body).Decode(&profile)
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return nil, nil
	})

	if err != nil {
		return nil, wrapExternal(c.metrics, "profile", err)
	}
	if notFound {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: id}
	}
	return &profile, nil
}

// ListProfilesByRole fetches the full candidate pool for a role.
func (c *ProfileStoreClient) ListProfilesByRole(ctx context.Context, role domain.Role) ([]*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "ProfileStoreClient.ListProfilesByRole")
	defer span.End()
	span.SetAttributes(attribute.String("profile.role", string(role)))

	var profiles []*domain.Profile

	_, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			u := fmt.Sprintf("%s/v1/profiles?role=%s", c.baseURL, url.QueryEscape(string(role)))
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return err
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("profile API returned status %d", resp.StatusCode)
			}

			profiles = profiles[:0]
			return json.NewDecoder(resp.Body).Decode(&profiles)
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return nil, nil
	})

	if err != nil {
		return nil, wrapExternal(c.metrics, "profile", err)
	}
	return profiles, nil
}
