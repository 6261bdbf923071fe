package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veyralabs/fundmatch-go/internal/domain"
	"github.com/veyralabs/fundmatch-go/internal/index"
)

// ============================================================
// Search
// ============================================================

type searchResponse struct {
	Results  []*domain.Profile `json:"results"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
	Degraded bool              `json:"degraded"`
}

// parseFilters reads repeated filter=field:op:value params. Unknown ops are
// a client error; unknown fields are left to the index, which never matches
// them.
func parseFilters(r *http.Request) ([]domain.SearchFilter, error) {
	var out []domain.SearchFilter
	for _, raw := range r.URL.Query()["filter"] {
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, &domain.ErrValidation{Field: "filter", Message: "expected field:op:value"}
		}
		op := domain.FilterOp(parts[1])
		switch op {
		case domain.FilterEquals, domain.FilterContains, domain.FilterMin, domain.FilterMax:
		default:
			return nil, &domain.ErrValidation{Field: "filter", Message: "unknown op " + parts[1]}
		}
		out = append(out, domain.SearchFilter{Field: parts[0], Op: op, Value: parts[2]})
	}
	return out, nil
}

func searchHandler(svc *index.Service, timeout time.Duration, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/search")
		defer span.End()

		role := domain.Role(r.URL.Query().Get("role"))
		if !role.Valid() {
			handleServiceError(w, &domain.ErrValidation{Field: "role", Message: "must be entrepreneur or funder"}, logger)
			return
		}

		filters, err := parseFilters(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		page, limit := parsePagination(r)
		query := domain.SearchQuery{
			Text:    r.URL.Query().Get("q"),
			Role:    role,
			Filters: filters,
			SortBy:  r.URL.Query().Get("sort"),
			SortAsc: strings.EqualFold(r.URL.Query().Get("order"), "asc"),
			Page:    page,
			Limit:   limit,
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		result, err := svc.Search(ctx, query)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, searchResponse{
			Results:  result.Profiles,
			Total:    result.Total,
			Page:     result.Page,
			Limit:    result.Limit,
			Degraded: result.Degraded,
		})
	}
}
