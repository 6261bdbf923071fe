package index_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/veyralabs/fundmatch-go/internal/domain"
	"github.com/veyralabs/fundmatch-go/internal/index"
	"github.com/veyralabs/fundmatch-go/internal/infra/cache"
	"github.com/veyralabs/fundmatch-go/internal/infra/observability"
)

// --- Mocks ---

type mockProfileStore struct {
	profiles map[string]*domain.Profile
	listErr  error
}

func (m *mockProfileStore) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: id}
	}
	return p, nil
}

func (m *mockProfileStore) ListProfilesByRole(_ context.Context, role domain.Role) ([]*domain.Profile, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*domain.Profile
	for _, p := range m.profiles {
		if p.Role == role {
			out = append(out, p)
		}
	}
	return out, nil
}

func ent(id string, industries []string, businessType string, years int) *domain.Profile {
	return &domain.Profile{
		ID:   id,
		Role: domain.RoleEntrepreneur,
		Entrepreneur: &domain.EntrepreneurData{
			Industries:      industries,
			BusinessType:    businessType,
			YearsExperience: years,
		},
	}
}

func newService(t *testing.T, store *mockProfileStore) *index.Service {
	t.Helper()
	c := cache.NewInMemory[domain.SearchResult](time.Minute)
	t.Cleanup(c.Close)
	return index.NewService(store, c, observability.NewMetrics(), zap.NewNop(), time.Minute, 4)
}

func ids(result *domain.SearchResult) []string {
	out := make([]string, 0, len(result.Profiles))
	for _, p := range result.Profiles {
		out = append(out, p.ID)
	}
	return out
}

// --- Tests ---

func TestSearch_ANDSemantics(t *testing.T) {
	store := &mockProfileStore{profiles: map[string]*domain.Profile{
		"e1": ent("e1", []string{"Clean Tech", "Solar"}, "llc", 5),
		"e2": ent("e2", []string{"Clean Tech"}, "corp", 3),
		"e3": ent("e3", []string{"Solar"}, "llc", 8),
	}}
	svc := newService(t, store)
	ctx := context.Background()

	if err := svc.ReindexAll(ctx); err != nil {
		t.Fatalf("reindex failed: %v", err)
	}

	res, err := svc.Search(ctx, domain.SearchQuery{Text: "clean solar", Role: domain.RoleEntrepreneur})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	// Only e1 carries both "clean" and "solar".
	if got := ids(res); !reflect.DeepEqual(got, []string{"e1"}) {
		t.Errorf("expected [e1], got %v", got)
	}
}

func TestSearch_EmptyQueryReturnsAllOfRole(t *testing.T) {
	store := &mockProfileStore{profiles: map[string]*domain.Profile{
		"e1": ent("e1", []string{"Tech"}, "llc", 5),
		"e2": ent("e2", []string{"Retail"}, "corp", 3),
		"f1": {ID: "f1", Role: domain.RoleFunder, Funder: &domain.FunderData{AreasOfInterest: []string{"Tech"}}},
	}}
	svc := newService(t, store)
	ctx := context.Background()

	if err := svc.ReindexAll(ctx); err != nil {
		t.Fatalf("reindex failed: %v", err)
	}

	res, err := svc.Search(ctx, domain.SearchQuery{Role: domain.RoleEntrepreneur})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if res.Total != 2 {
		t.Errorf("expected 2 entrepreneurs, got %d", res.Total)
	}
	for _, p := range res.Profiles {
		if p.Role != domain.RoleEntrepreneur {
			t.Errorf("wrong role in results: %s", p.ID)
		}
	}
}

func TestSearch_Filters(t *testing.T) {
	store := &mockProfileStore{profiles: map[string]*domain.Profile{
		"e1": ent("e1", []string{"Tech"}, "llc", 2),
		"e2": ent("e2", []string{"Tech"}, "llc", 10),
		"e3": ent("e3", []string{"Tech"}, "corp", 12),
	}}
	svc := newService(t, store)
	ctx := context.Background()

	if err := svc.ReindexAll(ctx); err != nil {
		t.Fatalf("reindex failed: %v", err)
	}

	res, err := svc.Search(ctx, domain.SearchQuery{
		Role: domain.RoleEntrepreneur,
		Filters: []domain.SearchFilter{
			{Field: "years_experience", Op: domain.FilterMin, Value: "5"},
			{Field: "business_type", Op: domain.FilterEquals, Value: "llc"},
		},
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if got := ids(res); !reflect.DeepEqual(got, []string{"e2"}) {
		t.Errorf("expected [e2], got %v", got)
	}
}

func TestSearch_SortAndPagination(t *testing.T) {
	store := &mockProfileStore{profiles: map[string]*domain.Profile{
		"e1": ent("e1", []string{"Tech"}, "llc", 4),
		"e2": ent("e2", []string{"Tech"}, "llc", 9),
		"e3": ent("e3", []string{"Tech"}, "llc", 9),
		"e4": ent("e4", []string{"Tech"}, "llc", 1),
	}}
	svc := newService(t, store)
	ctx := context.Background()

	if err := svc.ReindexAll(ctx); err != nil {
		t.Fatalf("reindex failed: %v", err)
	}

	page1, err := svc.Search(ctx, domain.SearchQuery{
		Role: domain.RoleEntrepreneur, SortBy: "years_experience", Page: 1, Limit: 2,
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	// Descending by experience; equal values tie-break by id.
	if got := ids(page1); !reflect.DeepEqual(got, []string{"e2", "e3"}) {
		t.Errorf("page 1: expected [e2 e3], got %v", got)
	}

	page2, err := svc.Search(ctx, domain.SearchQuery{
		Role: domain.RoleEntrepreneur, SortBy: "years_experience", Page: 2, Limit: 2,
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if got := ids(page2); !reflect.DeepEqual(got, []string{"e1", "e4"}) {
		t.Errorf("page 2: expected [e1 e4], got %v", got)
	}
	if page1.Total != 4 || page2.Total != 4 {
		t.Errorf("expected total 4 on both pages, got %d and %d", page1.Total, page2.Total)
	}
}

func TestSearch_FailsOpenWhenIndexEmpty(t *testing.T) {
	store := &mockProfileStore{profiles: map[string]*domain.Profile{
		"e1": ent("e1", []string{"Tech"}, "llc", 5),
	}}
	svc := newService(t, store)
	ctx := context.Background()

	// No reindex: the store scan must still answer correctly.
	res, err := svc.Search(ctx, domain.SearchQuery{Text: "tech", Role: domain.RoleEntrepreneur})
	if err != nil {
		t.Fatalf("expected fail-open search to succeed, got %v", err)
	}
	if !res.Degraded {
		t.Error("expected degraded flag on fallback result")
	}
	if got := ids(res); !reflect.DeepEqual(got, []string{"e1"}) {
		t.Errorf("expected [e1], got %v", got)
	}
}

func TestSearch_ExpiredDeadlineIsTimeout(t *testing.T) {
	store := &mockProfileStore{listErr: context.DeadlineExceeded}
	svc := newService(t, store)

	// Empty index forces the store scan; a deadline that expires during it
	// must surface as the taxonomy timeout, not the raw context error.
	_, err := svc.Search(context.Background(), domain.SearchQuery{Text: "tech", Role: domain.RoleEntrepreneur})
	var timeout *domain.ErrTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("expected Timeout, got %v", err)
	}
}

func TestSearch_ColdAndWarmCacheAgree(t *testing.T) {
	store := &mockProfileStore{profiles: map[string]*domain.Profile{
		"e1": ent("e1", []string{"Tech", "Solar"}, "llc", 5),
		"e2": ent("e2", []string{"Tech"}, "llc", 3),
	}}
	svc := newService(t, store)
	ctx := context.Background()

	if err := svc.ReindexAll(ctx); err != nil {
		t.Fatalf("reindex failed: %v", err)
	}

	q := domain.SearchQuery{Text: "tech", Role: domain.RoleEntrepreneur}
	cold, err := svc.Search(ctx, q)
	if err != nil {
		t.Fatalf("cold search failed: %v", err)
	}
	warm, err := svc.Search(ctx, q)
	if err != nil {
		t.Fatalf("warm search failed: %v", err)
	}

	if !reflect.DeepEqual(ids(cold), ids(warm)) {
		t.Errorf("cold and warm results differ: %v vs %v", ids(cold), ids(warm))
	}
}

func TestSearch_EquivalentQueriesShareCacheEntry(t *testing.T) {
	store := &mockProfileStore{profiles: map[string]*domain.Profile{
		"e1": ent("e1", []string{"Tech", "Solar"}, "llc", 5),
	}}
	svc := newService(t, store)
	ctx := context.Background()

	if err := svc.ReindexAll(ctx); err != nil {
		t.Fatalf("reindex failed: %v", err)
	}

	// Token order, casing and extra whitespace must not fragment the cache.
	first, err := svc.Search(ctx, domain.SearchQuery{Text: "Tech Solar", Role: domain.RoleEntrepreneur})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	// Remove the profile from the index; an equivalent query must still be
	// answered from the shared cache entry.
	store.profiles = map[string]*domain.Profile{}
	if err := svc.ReindexAll(ctx); err != nil {
		t.Fatalf("reindex failed: %v", err)
	}

	second, err := svc.Search(ctx, domain.SearchQuery{Text: "  solar   TECH ", Role: domain.RoleEntrepreneur})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if !reflect.DeepEqual(ids(first), ids(second)) {
		t.Errorf("equivalent queries did not share a cache entry: %v vs %v", ids(first), ids(second))
	}
}

func TestReindexAll_IdempotentAndPrunes(t *testing.T) {
	store := &mockProfileStore{profiles: map[string]*domain.Profile{
		"e1": ent("e1", []string{"Tech"}, "llc", 5),
		"e2": ent("e2", []string{"Retail"}, "llc", 3),
	}}
	svc := newService(t, store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.ReindexAll(ctx); err != nil {
			t.Fatalf("reindex %d failed: %v", i, err)
		}
	}

	res, err := svc.Search(ctx, domain.SearchQuery{Text: "tech", Role: domain.RoleEntrepreneur})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if got := ids(res); !reflect.DeepEqual(got, []string{"e1"}) {
		t.Errorf("expected [e1] after repeated reindex, got %v", got)
	}

	// Deleted upstream: the next full rebuild must drop it.
	delete(store.profiles, "e1")
	if err := svc.ReindexAll(ctx); err != nil {
		t.Fatalf("reindex failed: %v", err)
	}
	res, err = svc.Search(ctx, domain.SearchQuery{Text: "tech", Role: domain.RoleEntrepreneur})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if res.Total != 0 {
		t.Errorf("expected pruned profile to vanish, got %v", ids(res))
	}
}

func TestIndexProfile_RemovesMissingProfile(t *testing.T) {
	store := &mockProfileStore{profiles: map[string]*domain.Profile{
		"e1": ent("e1", []string{"Tech"}, "llc", 5),
		"e2": ent("e2", []string{"Tech"}, "llc", 5),
	}}
	svc := newService(t, store)
	ctx := context.Background()

	if err := svc.ReindexAll(ctx); err != nil {
		t.Fatalf("reindex failed: %v", err)
	}

	delete(store.profiles, "e1")
	if err := svc.IndexProfile(ctx, "e1"); err == nil {
		t.Fatal("expected NotFound for deleted profile")
	}

	res, err := svc.Search(ctx, domain.SearchQuery{Text: "tech", Role: domain.RoleEntrepreneur})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if got := ids(res); !reflect.DeepEqual(got, []string{"e2"}) {
		t.Errorf("expected [e2] after removal, got %v", got)
	}
}

func TestTokenize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"Clean-Tech & Solar!", []string{"clean", "tech", "solar"}},
		{"  ", nil},
		{"Tech tech TECH", []string{"tech"}},
		{"series-a 2024", []string{"series", "a", "2024"}},
	}
	for _, c := range cases {
		if got := index.Tokenize(c.in); !reflect.DeepEqual(got, c.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
