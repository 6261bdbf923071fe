package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"

	"github.com/veyralabs/fundmatch-go/internal/domain"
	"github.com/veyralabs/fundmatch-go/internal/infra/observability"
	"github.com/veyralabs/fundmatch-go/internal/infra/resilience"
)

// MatchStoreClient talks to the Match API, which owns the resolution state
// of profile pairs.
type MatchStoreClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	metrics    *observability.Metrics
}

// NewMatchStoreClient creates a new MatchStoreClient.
func NewMatchStoreClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics) *MatchStoreClient {
	return &MatchStoreClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
		metrics:    metrics,
	}
}

type matchStatusResponse struct {
	Status domain.MatchStatus `json:"status"`
}

// GetMatchStatus returns the pair's status. The Match API answers for either
// direction of the pair; an unknown pair reports "none".
func (c *MatchStoreClient) GetMatchStatus(ctx context.Context, userID, candidateID string) (domain.MatchStatus, error) {
	ctx, span := tracer.Start(ctx, "MatchStoreClient.GetMatchStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("candidate.id", candidateID),
	)

	var (
		status   matchStatusResponse
		notFound bool
	)

	_, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			u := fmt.Sprintf("%s/v1/matches/status?user_id=%s&candidate_id=%s",
				c.baseURL, url.QueryEscape(userID), url.QueryEscape(candidateID))
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
				return fmt.Errorf("match API returned status %d", resp.StatusCode)
			}

			return json.NewDecoder(resp.Body).Decode(&status)
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return nil, nil
	})

	if err != nil {
		return "", wrapExternal(c.metrics, "match", err)
	}
	if notFound || status.Status == "" {
		return domain.MatchStatusNone, nil
	}
	return status.Status, nil
}

type createMatchRequest struct {
	UserID        string  `json:"user_id"`
	CandidateID   string  `json:"candidate_id"`
	Compatibility float64 `json:"compatibility"`
}

// CreatePendingMatch records a pending match initiated by userID.
func (c *MatchStoreClient) CreatePendingMatch(ctx context.Context, userID, candidateID string, compatibility float64) error {
	ctx, span := tracer.Start(ctx, "MatchStoreClient.CreatePendingMatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("candidate.id", candidateID),
	)

	// One key across retries so the Match API can deduplicate replays.
	idempotencyKey := uuid.NewString()

	_, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := json.Marshal(createMatchRequest{
				UserID:        userID,
				CandidateID:   candidateID,
				Compatibility: compatibility,
			})
			if err != nil {
				return err
			}

			u := fmt.Sprintf("%s/v1/matches", c.baseURL)
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

			if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
				return fmt.Errorf("match API returned status %d", resp.StatusCode)
			}
			return nil
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return nil, nil
	})

	if err != nil {
		return wrapExternal(c.metrics, "match", err)
	}
	return nil
}
