package integration_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/veyralabs/fundmatch-go/internal/domain"
	"github.com/veyralabs/fundmatch-go/internal/handler"
	"github.com/veyralabs/fundmatch-go/internal/index"
	"github.com/veyralabs/fundmatch-go/internal/infra/cache"
	"github.com/veyralabs/fundmatch-go/internal/infra/client"
	"github.com/veyralabs/fundmatch-go/internal/infra/observability"
	"github.com/veyralabs/fundmatch-go/internal/infra/resilience"
	"github.com/veyralabs/fundmatch-go/internal/recommend"
	"github.com/veyralabs/fundmatch-go/internal/scoring"
)

func fixtureProfiles() map[string]*domain.Profile {
	return map[string]*domain.Profile{
		"ent-1": {
			ID:   "ent-1",
			Role: domain.RoleEntrepreneur,
			Entrepreneur: &domain.EntrepreneurData{
				Industries:        []string{"clean energy", "solar"},
				DesiredInvestment: 250_000,
				YearsExperience:   6,
				BusinessType:      "llc",
			},
			VerificationLevel: domain.VerificationUseCase,
			EmailVerified:     true,
			PhoneVerified:     true,
		},
		"fund-1": {
			ID:   "fund-1",
			Role: domain.RoleFunder,
			Funder: &domain.FunderData{
				AreasOfInterest: []string{"clean energy"},
				InvestmentMin:   100_000,
				InvestmentMax:   500_000,
				YearsExperience: 10,
				Certifications:  []string{"accredited"},
			},
			VerificationLevel: domain.VerificationUseCase,
			EmailVerified:     true,
			PhoneVerified:     true,
		},
		"fund-2": {
			ID:   "fund-2",
			Role: domain.RoleFunder,
			Funder: &domain.FunderData{
				AreasOfInterest: []string{"retail"},
				InvestmentMin:   10_000,
				InvestmentMax:   50_000,
				YearsExperience: 2,
				Certifications:  []string{"accredited"},
			},
			EmailVerified: true,
			PhoneVerified: true,
		},
	}
}

// mockProfileAPI serves GET /v1/profiles/{id} and GET /v1/profiles?role=.
func mockProfileAPI(profiles map[string]*domain.Profile) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if id := strings.TrimPrefix(r.URL.Path, "/v1/profiles/"); id != "" && id != r.URL.Path {
			p, ok := profiles[id]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(p)
			return
		}

		role := domain.Role(r.URL.Query().Get("role"))
		var out []*domain.Profile
		for _, p := range profiles {
			if p.Role == role {
				out = append(out, p)
			}
		}
		json.NewEncoder(w).Encode(out)
	}))
}

func mockMatchAPI(statuses map[string]domain.MatchStatus) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/matches/status":
			key := r.URL.Query().Get("user_id") + "|" + r.URL.Query().Get("candidate_id")
			status, ok := statuses[key]
			if !ok {
				status = domain.MatchStatusNone
			}
			json.NewEncoder(w).Encode(map[string]domain.MatchStatus{"status": status})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/matches":
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func mockQuotaAPI(allowed bool, retryAfterSeconds int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"allowed":             allowed,
			"retry_after_seconds": retryAfterSeconds,
		})
	}))
}

func buildRouter(t *testing.T, profileURL, matchURL, quotaURL string) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	resCfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 4}
	httpClient := &http.Client{Timeout: 5 * time.Second}

	profiles := client.NewProfileStoreClient(httpClient, profileURL, resilience.NewCircuitBreaker("it-profile"), resCfg, metrics)
	matches := client.NewMatchStoreClient(httpClient, matchURL, resilience.NewCircuitBreaker("it-match"), resCfg, metrics)
	quota := client.NewQuotaClient(httpClient, quotaURL, resilience.NewCircuitBreaker("it-quota"), resCfg, metrics)

	recoCache := cache.NewInMemory[domain.Recommendations](time.Minute)
	t.Cleanup(recoCache.Close)
	searchCache := cache.NewInMemory[domain.SearchResult](time.Minute)
	t.Cleanup(searchCache.Close)

	reco := recommend.NewService(
		profiles, matches, quota,
		scoring.New(scoring.DefaultPolicy()),
		recoCache, metrics, logger, recommend.DefaultConfig(),
	)
	idx := index.NewService(profiles, searchCache, metrics, logger, time.Minute, 4)

	return handler.NewRouter(reco, idx, metrics, logger, handler.Config{
		RecommendTimeout: 5 * time.Second,
		SearchTimeout:    5 * time.Second,
		AdminJWTSecret:   "it-secret",
	})
}

// TestIntegration_RecommendFlow runs the full recommendation path against
// mock collaborator APIs.
func TestIntegration_RecommendFlow(t *testing.T) {
	profileSrv := mockProfileAPI(fixtureProfiles())
	defer profileSrv.Close()
	matchSrv := mockMatchAPI(map[string]domain.MatchStatus{
		"fund-2|ent-1": domain.MatchStatusRejected,
	})
	defer matchSrv.Close()
	quotaSrv := mockQuotaAPI(true, 0)
	defer quotaSrv.Close()

	router := buildRouter(t, profileSrv.URL, matchSrv.URL, quotaSrv.URL)

	req := httptest.NewRequest(http.MethodGet, "/v1/recommendations?user_id=ent-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		UserID          string `json:"user_id"`
		Recommendations []struct {
			Profile struct {
				ID string `json:"id"`
			} `json:"profile"`
			Score   float64  `json:"score"`
			Reasons []string `json:"reasons"`
		} `json:"recommendations"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	// fund-2 was rejected in the reverse direction and must not come back.
	if len(resp.Recommendations) != 1 {
		t.Fatalf("expected one candidate, got %d", len(resp.Recommendations))
	}
	if resp.Recommendations[0].Profile.ID != "fund-1" {
		t.Errorf("expected fund-1, got %s", resp.Recommendations[0].Profile.ID)
	}
	if len(resp.Recommendations[0].Reasons) == 0 {
		t.Error("expected at least one reason for a strong pairing")
	}
}

func TestIntegration_SuperLikeAndQuota(t *testing.T) {
	profileSrv := mockProfileAPI(fixtureProfiles())
	defer profileSrv.Close()
	matchSrv := mockMatchAPI(nil)
	defer matchSrv.Close()

	t.Run("allowed", func(t *testing.T) {
		quotaSrv := mockQuotaAPI(true, 0)
		defer quotaSrv.Close()
		router := buildRouter(t, profileSrv.URL, matchSrv.URL, quotaSrv.URL)

		body := strings.NewReader(`{"user_id":"ent-1","candidate_id":"fund-1"}`)
		req := httptest.NewRequest(http.MethodPost, "/v1/matches/super-like", body)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d. Body: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("quota exhausted", func(t *testing.T) {
		quotaSrv := mockQuotaAPI(false, 3600)
		defer quotaSrv.Close()
		router := buildRouter(t, profileSrv.URL, matchSrv.URL, quotaSrv.URL)

		body := strings.NewReader(`{"user_id":"ent-1","candidate_id":"fund-1"}`)
		req := httptest.NewRequest(http.MethodPost, "/v1/matches/super-like", body)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if got := rec.Header().Get("Retry-After"); got != "3600" {
			t.Errorf("expected Retry-After 3600, got %q", got)
		}
	})
}

// TestIntegration_SearchFailsOpen verifies the degraded store-scan path: no
// index has been built, the search must still answer from the Profile API.
func TestIntegration_SearchFailsOpen(t *testing.T) {
	profileSrv := mockProfileAPI(fixtureProfiles())
	defer profileSrv.Close()
	matchSrv := mockMatchAPI(nil)
	defer matchSrv.Close()
	quotaSrv := mockQuotaAPI(true, 0)
	defer quotaSrv.Close()

	router := buildRouter(t, profileSrv.URL, matchSrv.URL, quotaSrv.URL)

	req := httptest.NewRequest(http.MethodGet, "/v1/search?role=funder&q=clean+energy", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
		Total    int  `json:"total"`
		Degraded bool `json:"degraded"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Degraded {
		t.Error("expected degraded flag before any index build")
	}
	if resp.Total != 1 || resp.Results[0].ID != "fund-1" {
		t.Errorf("expected fund-1 only, got %+v", resp)
	}
}

// TestIntegration_ProfileNotFound tests 404 propagation from the Profile API.
func TestIntegration_ProfileNotFound(t *testing.T) {
	profileSrv := mockProfileAPI(map[string]*domain.Profile{})
	defer profileSrv.Close()
	matchSrv := mockMatchAPI(nil)
	defer matchSrv.Close()
	quotaSrv := mockQuotaAPI(true, 0)
	defer quotaSrv.Close()

	router := buildRouter(t, profileSrv.URL, matchSrv.URL, quotaSrv.URL)

	req := httptest.NewRequest(http.MethodGet, "/v1/recommendations?user_id=nobody", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
