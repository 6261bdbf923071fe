// Package index maintains the inverted search index: token postings per
// role plus cached profile snapshots. It is a best-effort accelerator: the
// profile store stays authoritative, and searches fail open to a direct
// store scan when the index has nothing for a role.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veyralabs/fundmatch-go/internal/domain"
	"github.com/veyralabs/fundmatch-go/internal/infra/observability"
	"github.com/veyralabs/fundmatch-go/internal/infra/resilience"
	"github.com/veyralabs/fundmatch-go/internal/port"
)

var tracer = otel.Tracer("index")

type entryKey struct {
	Role domain.Role
	ID   string
}

// indexEntry is one profile's slice of the index: its token set with field
// weights plus the serialized snapshot returned by searches.
type indexEntry struct {
	profile *domain.Profile
	tokens  map[string]float64
}

// Service is the search index. Query text is matched with strict AND
// semantics: a profile must contain every query token to be a candidate.
// Relevance ranking is deliberately out of scope here; the recommendation
// ranker owns nuanced scoring; the index's job is filtering and retrieval.
type Service struct {
	store    port.ProfileStore
	cache    port.Cache[domain.SearchResult]
	metrics  *observability.Metrics
	logger   *zap.Logger
	ttl      time.Duration
	bulkhead *resilience.Bulkhead

	mu       sync.RWMutex
	postings map[domain.Role]map[string]map[string]struct{}
	entries  map[entryKey]*indexEntry
}

// NewService creates the search index service. ttl bounds the staleness of
// cached search results; maxConcurrency caps parallel tokenization during a
// full reindex.
func NewService(
	store port.ProfileStore,
	cache port.Cache[domain.SearchResult],
	metrics *observability.Metrics,
	logger *zap.Logger,
	ttl time.Duration,
	maxConcurrency int,
) *Service {
	return &Service{
		store:    store,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		ttl:      ttl,
		bulkhead: resilience.NewBulkhead(maxConcurrency),
		postings: make(map[domain.Role]map[string]map[string]struct{}),
		entries:  make(map[entryKey]*indexEntry),
	}
}

// IndexProfile fetches one profile from the store and (re)indexes it. A
// profile that no longer exists is dropped from the index and NotFound is
// returned so callers can distinguish the two outcomes. Index mutations do
// not invalidate cached search results: the staleness window is bounded by
// the result TTL, a deliberate simplicity trade-off.
func (s *Service) IndexProfile(ctx context.Context, profileID string) error {
	ctx, span := tracer.Start(ctx, "Index.IndexProfile")
	defer span.End()
	span.SetAttributes(attribute.String("profile.id", profileID))

	p, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			s.removeProfile(profileID)
		}
		return err
	}

	s.upsert(p)
	s.metrics.IncrIndexedProfile("single")
	return nil
}

// ReindexAll rebuilds the index from the profile store. It is idempotent
// and safe to run while searches are being served: readers may observe a
// partially updated index, which the design tolerates as eventual
// consistency rather than taking an exclusive lock for the whole rebuild.
func (s *Service) ReindexAll(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Index.ReindexAll")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("reindex_all", time.Since(start))
	}()

	fresh := make(map[entryKey]struct{})
	var freshMu sync.Mutex

	for _, role := range []domain.Role{domain.RoleEntrepreneur, domain.RoleFunder} {
		profiles, err := s.store.ListProfilesByRole(ctx, role)
		if err != nil {
			return fmt.Errorf("list %s profiles: %w", role, err)
		}

		g, gCtx := errgroup.WithContext(ctx)
		for _, p := range profiles {
			p := p
			g.Go(func() error {
				if err := s.bulkhead.Acquire(gCtx); err != nil {
					return err
				}
				defer s.bulkhead.Release()

				s.upsert(p)
				s.metrics.IncrIndexedProfile("full")
				freshMu.Lock()
				fresh[entryKey{Role: p.Role, ID: p.ID}] = struct{}{}
				freshMu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	s.prune(fresh)
	s.logger.Info("full reindex complete", zap.Int("profiles", len(fresh)))
	return nil
}

// Search resolves a query against the index, consulting the result cache
// first. When the index holds nothing for the requested role it fails open
// to a direct profile store scan.
func (s *Service) Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Index.Search")
	defer span.End()

	if !q.Role.Valid() {
		return nil, &domain.ErrValidation{Field: "role", Message: "must be entrepreneur or funder"}
	}
	normalizeQuery(&q)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("search", time.Since(start))
	}()

	key := cacheKey(q)
	if cached, ok := s.cache.Get(ctx, key); ok {
		s.metrics.IncrCacheHit("search")
		return &cached, nil
	}
	s.metrics.IncrCacheMiss("search")

	tokens := Tokenize(q.Text)

	candidates, indexed := s.resolveCandidates(q.Role, tokens)
	if !indexed {
		return s.degradedSearch(ctx, q, tokens)
	}

	result := assemble(q, candidates)

	// Only fully computed results are cached; a missed deadline must not
	// leave partial data behind.
	if err := ctx.Err(); err != nil {
		return nil, &domain.ErrTimeout{Operation: "search"}
	}
	s.cache.Set(ctx, key, *result, s.ttl)
	return result, nil
}

// resolveCandidates intersects the postings of every query token (AND
// semantics). The second return is false when the index has no entries for
// the role, signalling the fail-open path.
func (s *Service) resolveCandidates(role domain.Role, tokens []string) ([]*domain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roleHasEntries := false
	for key := range s.entries {
		if key.Role == role {
			roleHasEntries = true
			break
		}
	}
	if !roleHasEntries {
		return nil, false
	}

	if len(tokens) == 0 {
		var all []*domain.Profile
		for key, e := range s.entries {
			if key.Role == role {
				all = append(all, e.profile)
			}
		}
		return all, true
	}

	rolePostings := s.postings[role]
	var ids map[string]struct{}
	for _, tok := range tokens {
		posting := rolePostings[tok]
		if len(posting) == 0 {
			return nil, true // one token with no postings empties the AND
		}
		if ids == nil {
			ids = make(map[string]struct{}, len(posting))
			for id := range posting {
				ids[id] = struct{}{}
			}
			continue
		}
		for id := range ids {
			if _, ok := posting[id]; !ok {
				delete(ids, id)
			}
		}
		if len(ids) == 0 {
			return nil, true
		}
	}

	profiles := make([]*domain.Profile, 0, len(ids))
	for id := range ids {
		if e, ok := s.entries[entryKey{Role: role, ID: id}]; ok {
			profiles = append(profiles, e.profile)
		}
	}
	return profiles, true
}

// degradedSearch answers a query straight from the profile store, applying
// the same token AND semantics by tokenizing profiles on the fly. Results
// are not cached so a recovered index takes over immediately.
func (s *Service) degradedSearch(ctx context.Context, q domain.SearchQuery, tokens []string) (*domain.SearchResult, error) {
	s.logger.Warn("search index empty for role, falling back to store scan",
		zap.String("role", string(q.Role)))
	s.metrics.IncrDegradedSearch()

	profiles, err := s.store.ListProfilesByRole(ctx, q.Role)
	if err != nil {
		// A deadline that expires during the scan surfaces as the context
		// error; keep it in the taxonomy.
		return nil, domain.AsTimeout(err, "search")
	}

	var candidates []*domain.Profile
	for _, p := range profiles {
		if len(tokens) > 0 && !containsAllTokens(profileTokens(p), tokens) {
			continue
		}
		candidates = append(candidates, p)
	}

	result := assemble(q, candidates)
	result.Degraded = true
	if err := ctx.Err(); err != nil {
		return nil, &domain.ErrTimeout{Operation: "search"}
	}
	return result, nil
}

func containsAllTokens(have map[string]float64, want []string) bool {
	for _, tok := range want {
		if _, ok := have[tok]; !ok {
			return false
		}
	}
	return true
}

// assemble applies filters, sort and pagination to a candidate set.
func assemble(q domain.SearchQuery, candidates []*domain.Profile) *domain.SearchResult {
	filtered := candidates[:0:0]
	for _, p := range candidates {
		keep := true
		for _, f := range q.Filters {
			if !matchesFilter(p, f) {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, p)
		}
	}

	sortProfiles(filtered, q.SortBy, q.SortAsc)

	total := len(filtered)
	startIdx := (q.Page - 1) * q.Limit
	if startIdx > total {
		startIdx = total
	}
	endIdx := startIdx + q.Limit
	if endIdx > total {
		endIdx = total
	}

	return &domain.SearchResult{
		Profiles: filtered[startIdx:endIdx],
		Total:    total,
		Page:     q.Page,
		Limit:    q.Limit,
	}
}

// sortProfiles orders by the named field with an id tie-break for
// reproducible pagination; without a sort field it orders by id.
func sortProfiles(profiles []*domain.Profile, sortBy string, asc bool) {
	sort.Slice(profiles, func(i, j int) bool {
		if sortBy != "" {
			vi, oki := sortValue(profiles[i], sortBy)
			vj, okj := sortValue(profiles[j], sortBy)
			if oki && okj && vi != vj {
				if asc {
					return vi < vj
				}
				return vi > vj
			}
		}
		return profiles[i].ID < profiles[j].ID
	})
}

func normalizeQuery(q *domain.SearchQuery) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
}

// cacheKey derives a canonical cache key from the query. Tokens are
// normalized and filters sorted, so equivalent queries that arrive encoded
// differently share one entry instead of colliding on ad-hoc string concat.
func cacheKey(q domain.SearchQuery) string {
	tokens := Tokenize(q.Text)
	sort.Strings(tokens)

	filters := make([]string, 0, len(q.Filters))
	for _, f := range q.Filters {
		filters = append(filters, fmt.Sprintf("%s:%s:%s", f.Field, f.Op, strings.ToLower(strings.TrimSpace(f.Value))))
	}
	sort.Strings(filters)

	dir := "desc"
	if q.SortAsc {
		dir = "asc"
	}
	return fmt.Sprintf("search|%s|q=%s|f=%s|s=%s:%s|p=%d|l=%d",
		q.Role,
		strings.Join(tokens, "+"),
		strings.Join(filters, ";"),
		q.SortBy, dir,
		q.Page, q.Limit,
	)
}

func (s *Service) upsert(p *domain.Profile) {
	tokens := profileTokens(p)
	key := entryKey{Role: p.Role, ID: p.ID}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropPostingsLocked(key)
	s.entries[key] = &indexEntry{profile: p, tokens: tokens}

	rolePostings := s.postings[p.Role]
	if rolePostings == nil {
		rolePostings = make(map[string]map[string]struct{})
		s.postings[p.Role] = rolePostings
	}
	for tok := range tokens {
		posting := rolePostings[tok]
		if posting == nil {
			posting = make(map[string]struct{})
			rolePostings[tok] = posting
		}
		posting[p.ID] = struct{}{}
	}
}

// removeProfile drops a profile from the index; the role is unknown at the
// call site so both role partitions are checked.
func (s *Service) removeProfile(profileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, role := range []domain.Role{domain.RoleEntrepreneur, domain.RoleFunder} {
		key := entryKey{Role: role, ID: profileID}
		if _, ok := s.entries[key]; ok {
			s.dropPostingsLocked(key)
			delete(s.entries, key)
		}
	}
}

// prune removes entries that a completed full reindex did not see.
func (s *Service) prune(fresh map[entryKey]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.entries {
		if _, ok := fresh[key]; !ok {
			s.dropPostingsLocked(key)
			delete(s.entries, key)
		}
	}
}

func (s *Service) dropPostingsLocked(key entryKey) {
	old, ok := s.entries[key]
	if !ok {
		return
	}
	rolePostings := s.postings[key.Role]
	for tok := range old.tokens {
		if posting, ok := rolePostings[tok]; ok {
			delete(posting, key.ID)
			if len(posting) == 0 {
				delete(rolePostings, tok)
			}
		}
	}
}
