package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"

	"github.com/veyralabs/fundmatch-go/internal/infra/observability"
	"github.com/veyralabs/fundmatch-go/internal/infra/resilience"
)

// QuotaClient consults the usage-limit service before rate-limited actions
// (super-likes, recommendation refreshes).
type QuotaClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	metrics    *observability.Metrics
}

// NewQuotaClient creates a new QuotaClient.
func NewQuotaClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics) *QuotaClient {
	return &QuotaClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
		metrics:    metrics,
	}
}

type consumeRequest struct {
	Action string `json:"action"`
}

type consumeResponse struct {
	Allowed           bool `json:"allowed"`
	RetryAfterSeconds int  `json:"retry_after_seconds"`
}

// CheckAndConsume atomically checks and consumes one unit of the user's
// quota for an action. A declined action is not an error: it returns
// allowed=false with the advisory retry-after interval.
func (c *QuotaClient) CheckAndConsume(ctx context.Context, userID, action string) (bool, time.Duration, error) {
	ctx, span := tracer.Start(ctx, "QuotaClient.CheckAndConsume")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("quota.action", action),
	)

	var decision consumeResponse

	// A retried consume must not charge the quota twice.
	idempotencyKey := uuid.NewString()

	_, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := json.Marshal(consumeRequest{Action: action})
			if err != nil {
				return err
			}

			u := fmt.Sprintf("%s/v1/quota/%s/consume", c.baseURL, url.PathEscape(userID))
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Idempotency-Key", idempotencyKey)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("quota API returned status %d", resp.StatusCode)
			}

			return json.NewDecoder(resp.Body).Decode(&decision)
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return nil, nil
	})

	if err != nil {
		return false, 0, wrapExternal(c.metrics, "quota", err)
	}
	return decision.Allowed, time.Duration(decision.RetryAfterSeconds) * time.Second, nil
}
