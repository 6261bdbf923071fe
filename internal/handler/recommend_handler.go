package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/veyralabs/fundmatch-go/internal/domain"
	"github.com/veyralabs/fundmatch-go/internal/recommend"
)

// ============================================================
// Recommendations
// ============================================================

type candidateResponse struct {
	Profile       *domain.Profile `json:"profile"`
	Score         float64         `json:"score"`
	Compatibility float64         `json:"compatibility"`
	// Per-factor breakdown on the canonical [0,1] scale; null marks a
	// factor that did not apply to the pair.
	Factors map[domain.Factor]*float64 `json:"factors"`
	Reasons []string                   `json:"reasons"`
}

type recommendationsResponse struct {
	UserID          string              `json:"user_id"`
	Recommendations []candidateResponse `json:"recommendations"`
	GeneratedAt     string              `json:"generated_at"`
}

// toRecommendationsResponse converts canonical scores to API percents.
func toRecommendationsResponse(recs *domain.Recommendations) recommendationsResponse {
	out := recommendationsResponse{
		UserID:          recs.UserID,
		Recommendations: make([]candidateResponse, len(recs.Candidates)),
		GeneratedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	for i, c := range recs.Candidates {
		out.Recommendations[i] = candidateResponse{
			Profile:       c.Profile,
			Score:         percent(c.Score),
			Compatibility: percent(c.Compatibility),
			Factors:       c.Factors,
			Reasons:       c.Reasons,
		}
	}
	return out
}

func getRecommendationsHandler(svc *recommend.Service, timeout time.Duration, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/recommendations")
		defer span.End()

		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			handleServiceError(w, &domain.ErrValidation{Field: "user_id", Message: "required"}, logger)
			return
		}

		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			l, err := strconv.Atoi(v)
			if err != nil || l < 1 || l > 100 {
				handleServiceError(w, &domain.ErrValidation{Field: "limit", Message: "must be 1-100"}, logger)
				return
			}
			limit = l
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		recs, err := svc.Recommend(ctx, userID, limit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, toRecommendationsResponse(recs))
	}
}

type refreshRequest struct {
	UserID string `json:"user_id"`
}

func refreshRecommendationsHandler(svc *recommend.Service, timeout time.Duration, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/recommendations/refresh")
		defer span.End()

		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			handleServiceError(w, &domain.ErrValidation{Field: "user_id", Message: "required"}, logger)
			return
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		recs, err := svc.Refresh(ctx, req.UserID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, toRecommendationsResponse(recs))
	}
}

// ============================================================
// Super-like
// ============================================================

type superLikeRequest struct {
	UserID      string `json:"user_id"`
	CandidateID string `json:"candidate_id"`
}

type superLikeResponse struct {
	UserID        string  `json:"user_id"`
	CandidateID   string  `json:"candidate_id"`
	Compatibility float64 `json:"compatibility"`
	Status        string  `json:"status"`
}

func superLikeHandler(svc *recommend.Service, timeout time.Duration, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/matches/super-like")
		defer span.End()

		var req superLikeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			handleServiceError(w, &domain.ErrValidation{Field: "body", Message: "invalid JSON"}, logger)
			return
		}
		if req.UserID == "" || req.CandidateID == "" {
			handleServiceError(w, &domain.ErrValidation{Field: "user_id/candidate_id", Message: "required"}, logger)
			return
		}
		if req.UserID == req.CandidateID {
			handleServiceError(w, &domain.ErrValidation{Field: "candidate_id", Message: "cannot super-like yourself"}, logger)
			return
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		boosted, err := svc.SuperLike(ctx, req.UserID, req.CandidateID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, superLikeResponse{
			UserID:        req.UserID,
			CandidateID:   req.CandidateID,
			Compatibility: percent(boosted),
			Status:        string(domain.MatchStatusPending),
		})
	}
}
