package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/veyralabs/fundmatch-go/internal/index"
)

// ============================================================
// Index maintenance
// ============================================================

func reindexProfileHandler(svc *index.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/index/profiles/{profileId}/reindex")
		defer span.End()

		profileID := chi.URLParam(r, "profileId")

		if err := svc.IndexProfile(ctx, profileID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"profile_id": profileID,
			"status":     "indexed",
		})
	}
}

func reindexAllHandler(svc *index.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "POST /v1/index/reindex-all")
		defer span.End()

		// The rebuild outlives the request; detach it from the request
		// context and bound it on its own.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if err := svc.ReindexAll(ctx); err != nil {
				logger.Error("full reindex failed", zap.Error(err))
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "reindex started"})
	}
}
