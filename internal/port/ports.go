// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations, so scorer, ranker and index can be
// tested against in-memory doubles.
package port

import (
	"context"
	"time"

	"github.com/veyralabs/fundmatch-go/internal/domain"
)

// ProfileStore is the authoritative source of profile records. The engine
// only reads from it; profile lifecycle is owned by an external collaborator.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	ListProfilesByRole(ctx context.Context, role domain.Role) ([]*domain.Profile, error)
}

// MatchStore tracks the resolution state of profile pairs.
type MatchStore interface {
	// GetMatchStatus returns the status of the (userID, candidateID) pair.
	// Implementations must answer for either direction of the pair.
	GetMatchStatus(ctx context.Context, userID, candidateID string) (domain.MatchStatus, error)

	// CreatePendingMatch records a pending match initiated by userID.
	CreatePendingMatch(ctx context.Context, userID, candidateID string, compatibility float64) error
}

// QuotaService is the usage-limit collaborator consulted before super-likes
// and recommendation refreshes. A false result carries no error: the action
// was simply declined.
type QuotaService interface {
	CheckAndConsume(ctx context.Context, userID, action string) (allowed bool, retryAfter time.Duration, err error)
}

// Cache provides generic caching with a per-entry TTL. It is never a source
// of truth: on a cold cache every result must be re-derivable from the
// ProfileStore and the scorer alone.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, bool)
	Set(ctx context.Context, key string, value T, ttl time.Duration)
	Delete(ctx context.Context, key string)
}
