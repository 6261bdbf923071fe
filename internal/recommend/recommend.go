// Package recommend implements the recommendation ranker: candidate pool
// resolution, compatibility scoring, ranking-only adjustments (historical
// success, activity, subscription-tier bonus) and reason attribution.
//
// The tier bonus amplifies ordering and visibility only. It is applied after
// compatibility is computed and never feeds back into the compatibility
// value used for mutual-match decisions.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veyralabs/fundmatch-go/internal/domain"
	"github.com/veyralabs/fundmatch-go/internal/infra/observability"
	"github.com/veyralabs/fundmatch-go/internal/port"
	"github.com/veyralabs/fundmatch-go/internal/scoring"
)

var tracer = otel.Tracer("recommend")

// Config holds the ranking policy. All values are business knobs, not
// invariants; defaults live in DefaultConfig.
type Config struct {
	// Ranking weights over compatibility, historical success and activity.
	CompatWeight   float64
	HistoryWeight  float64
	ActivityWeight float64

	// TierBonus maps subscription tiers to their visibility multiplier
	// increment: rank × (1 + bonus). Missing tiers get 0.
	TierBonus map[domain.SubscriptionTier]float64

	// ActiveUserBaseline is the 30-day action count that earns a full
	// activity score.
	ActiveUserBaseline int

	// ReasonThreshold is the factor value above which a reason is attached.
	ReasonThreshold float64

	// SuperLikeBoost multiplies compatibility before persisting a
	// super-like pending match, capped at the scale maximum.
	SuperLikeBoost float64

	DefaultLimit   int
	CacheTTL       time.Duration
	MaxConcurrency int
}

// DefaultConfig returns the default ranking policy.
func DefaultConfig() Config {
	return Config{
		CompatWeight:   0.70,
		HistoryWeight:  0.15,
		ActivityWeight: 0.15,
		TierBonus: map[domain.SubscriptionTier]float64{
			domain.TierBasic:    0,
			domain.TierChrome:   0.05,
			domain.TierBronze:   0.08,
			domain.TierSilver:   0.12,
			domain.TierGold:     0.20,
			domain.TierPlatinum: 0.25,
		},
		ActiveUserBaseline: 30,
		ReasonThreshold:    0.7,
		SuperLikeBoost:     1.2,
		DefaultLimit:       20,
		CacheTTL:           5 * time.Minute,
		MaxConcurrency:     8,
	}
}

// Service is the recommendation ranker.
type Service struct {
	profiles port.ProfileStore
	matches  port.MatchStore
	quota    port.QuotaService
	scorer   *scoring.Scorer
	cache    port.Cache[domain.Recommendations]
	metrics  *observability.Metrics
	logger   *zap.Logger
	cfg      Config
}

// NewService creates the ranker with all dependencies injected.
func NewService(
	profiles port.ProfileStore,
	matches port.MatchStore,
	quota port.QuotaService,
	scorer *scoring.Scorer,
	cache port.Cache[domain.Recommendations],
	metrics *observability.Metrics,
	logger *zap.Logger,
	cfg Config,
) *Service {
	return &Service{
		profiles: profiles,
		matches:  matches,
		quota:    quota,
		scorer:   scorer,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// Recommend returns the top candidates for a user, best first. An empty
// candidate pool yields an empty list, not an error. Results are cached per
// (user, limit); only fully computed results are cached, so a missed
// deadline never leaves partial data behind.
func (s *Service) Recommend(ctx context.Context, userID string, limit int) (*domain.Recommendations, error) {
	ctx, span := tracer.Start(ctx, "Recommend.Recommend")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("recommend", time.Since(start))
	}()

	key := recoCacheKey(userID, limit)
	if cached, ok := s.cache.Get(ctx, key); ok {
		s.metrics.IncrCacheHit("recommendations")
		return &cached, nil
	}
	s.metrics.IncrCacheMiss("recommendations")

	result, err := s.rank(ctx, userID, limit)
	if err != nil {
		// A deadline that expires while ranking is in flight surfaces as
		// the context error; keep it in the taxonomy.
		return nil, domain.AsTimeout(err, "recommend")
	}

	if err := ctx.Err(); err != nil {
		return nil, &domain.ErrTimeout{Operation: "recommend"}
	}
	s.cache.Set(ctx, key, *result, s.cfg.CacheTTL)
	return result, nil
}

// Refresh re-runs ranking for a user after consulting the cooldown quota.
func (s *Service) Refresh(ctx context.Context, userID string) (*domain.Recommendations, error) {
	ctx, span := tracer.Start(ctx, "Recommend.Refresh")
	defer span.End()

	allowed, retryAfter, err := s.quota.CheckAndConsume(ctx, userID, "recommendation_refresh")
	if err != nil {
		return nil, domain.AsTimeout(fmt.Errorf("refresh quota check: %w", err), "refresh")
	}
	if !allowed {
		return nil, &domain.ErrQuotaExceeded{Action: "recommendation_refresh", RetryAfter: retryAfter}
	}

	s.cache.Delete(ctx, recoCacheKey(userID, s.cfg.DefaultLimit))
	return s.Recommend(ctx, userID, s.cfg.DefaultLimit)
}

// SuperLike boosts the pair's compatibility by the configured multiplier
// (capped at the scale maximum) and persists a pending match. The usage
// quota is consumed first; a refusal surfaces as QuotaExceeded.
func (s *Service) SuperLike(ctx context.Context, userID, candidateID string) (float64, error) {
	ctx, span := tracer.Start(ctx, "Recommend.SuperLike")
	defer span.End()

	allowed, retryAfter, err := s.quota.CheckAndConsume(ctx, userID, "super_like")
	if err != nil {
		return 0, domain.AsTimeout(fmt.Errorf("super-like quota check: %w", err), "super_like")
	}
	if !allowed {
		return 0, &domain.ErrQuotaExceeded{Action: "super_like", RetryAfter: retryAfter}
	}

	subject, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return 0, err
	}
	candidate, err := s.profiles.GetProfile(ctx, candidateID)
	if err != nil {
		return 0, err
	}

	res, err := s.scorer.Score(subject, candidate)
	if err != nil {
		return 0, err
	}
	s.metrics.AddPairsScored(1)

	boosted := res.Total * s.cfg.SuperLikeBoost
	if boosted > 1 {
		boosted = 1
	}

	if err := s.matches.CreatePendingMatch(ctx, userID, candidateID, boosted); err != nil {
		return 0, domain.AsTimeout(fmt.Errorf("create pending match: %w", err), "super_like")
	}
	return boosted, nil
}

type rankedCandidate struct {
	candidate *domain.Profile
	compat    domain.CompatibilityResult
	history   float64
	activity  float64
	rank      float64
}

func (s *Service) rank(ctx context.Context, userID string, limit int) (*domain.Recommendations, error) {
	subject, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	pool, err := s.profiles.ListProfilesByRole(ctx, subject.Role.Opposite())
	if err != nil {
		return nil, fmt.Errorf("candidate pool: %w", err)
	}

	candidates, err := s.excludeResolved(ctx, userID, pool)
	if err != nil {
		return nil, err
	}

	ranked := make([]*rankedCandidate, len(candidates))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			res, err := s.scorer.Score(subject, c)
			if err != nil {
				return err
			}
			rc := &rankedCandidate{
				candidate: c,
				compat:    res,
				history:   historicalSuccess(c),
				activity:  s.activityScore(c),
			}
			rc.rank = s.rankScore(rc)
			ranked[i] = rc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.metrics.AddPairsScored(len(ranked))
	s.logger.Debug("ranked candidate pool",
		zap.String("user_id", userID),
		zap.Int("pool", len(pool)),
		zap.Int("eligible", len(candidates)),
	)

	// Descending by rank; equal ranks break on candidate id so repeated
	// calls paginate identically.
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].rank != ranked[j].rank {
			return ranked[i].rank > ranked[j].rank
		}
		return ranked[i].candidate.ID < ranked[j].candidate.ID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := &domain.Recommendations{
		UserID:     userID,
		Candidates: make([]domain.MatchCandidate, len(ranked)),
	}
	for i, rc := range ranked {
		out.Candidates[i] = domain.MatchCandidate{
			Profile:       rc.candidate,
			Score:         rc.rank,
			Compatibility: rc.compat.Total,
			Factors:       rc.compat.Factors,
			Reasons:       s.reasons(subject, rc),
		}
	}
	return out, nil
}

// excludeResolved drops the subject itself and every candidate whose pair
// with the subject is already pending, matched or rejected in either
// direction, so a rejection recorded one way never resurfaces the other.
func (s *Service) excludeResolved(ctx context.Context, userID string, pool []*domain.Profile) ([]*domain.Profile, error) {
	out := make([]*domain.Profile, 0, len(pool))
	for _, c := range pool {
		if c.ID == userID {
			continue
		}

		status, err := s.matches.GetMatchStatus(ctx, userID, c.ID)
		if err != nil {
			return nil, fmt.Errorf("match status (%s,%s): %w", userID, c.ID, err)
		}
		if status == domain.MatchStatusNone {
			status, err = s.matches.GetMatchStatus(ctx, c.ID, userID)
			if err != nil {
				return nil, fmt.Errorf("match status (%s,%s): %w", c.ID, userID, err)
			}
		}
		if status != domain.MatchStatusNone {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// rankScore fuses compatibility with the ranking-only adjustments and
// applies the tier bonus last.
func (s *Service) rankScore(rc *rankedCandidate) float64 {
	base := s.cfg.CompatWeight*rc.compat.Total +
		s.cfg.HistoryWeight*rc.history +
		s.cfg.ActivityWeight*rc.activity
	return base * (1 + s.cfg.TierBonus[rc.candidate.Tier])
}

// historicalSuccess is the fraction of the candidate's past matches that
// became mutual. No history scores zero, not neutral: an unproven candidate
// earns no success credit.
func historicalSuccess(p *domain.Profile) float64 {
	if len(p.MatchHistory) == 0 {
		return 0
	}
	matched := 0
	for _, h := range p.MatchHistory {
		if h.Status == domain.MatchStatusMatched {
			matched++
		}
	}
	return float64(matched) / float64(len(p.MatchHistory))
}

// activityScore normalizes recent activity against the active-user
// baseline, capped at 1.
func (s *Service) activityScore(p *domain.Profile) float64 {
	if s.cfg.ActiveUserBaseline <= 0 || p.ActivityCount30d <= 0 {
		return 0
	}
	score := float64(p.ActivityCount30d) / float64(s.cfg.ActiveUserBaseline)
	if score > 1 {
		return 1
	}
	return score
}

// reasons evaluates the fixed rule list in order. Each rule is independent;
// the order affects presentation only, never the score.
func (s *Service) reasons(subject *domain.Profile, rc *rankedCandidate) []string {
	thr := s.cfg.ReasonThreshold
	var out []string

	above := func(f domain.Factor) bool {
		v := rc.compat.Factors[f]
		return v != nil && *v > thr
	}

	if above(domain.FactorIndustry) {
		out = append(out, "strong industry overlap")
	}
	if above(domain.FactorInvestment) {
		out = append(out, "investment amount fits the funder's range")
	}
	if above(domain.FactorExperience) {
		out = append(out, "comparable experience levels")
	}
	// The geography factor is neutral when a location is unknown, so
	// proximity is only claimed when both sides were actually measured.
	if above(domain.FactorGeography) && subject.Location != nil && rc.candidate.Location != nil {
		out = append(out, "located nearby")
	}
	if above(domain.FactorVerification) {
		out = append(out, "both profiles highly verified")
	}
	if rc.history > thr {
		out = append(out, "high historical match success")
	}
	if rc.activity > thr {
		out = append(out, "recently active")
	}
	return out
}

func recoCacheKey(userID string, limit int) string {
	return fmt.Sprintf("reco|%s|%d", userID, limit)
}
