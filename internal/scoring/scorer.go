// Package scoring implements the compatibility scorer: a pure, deterministic
// multi-factor weighted score between two profiles on the canonical [0,1]
// scale. Ranking/business adjustments (tier bonus, activity, history) live in
// the recommend package; compatibility itself is policy-free.
package scoring

import (
	"math"
	"strings"

	"github.com/veyralabs/fundmatch-go/internal/domain"
)

// Weights is the relative importance of each factor. Weights need not sum to
// one: they are renormalized over the factors that apply to a given pair, so
// a skipped factor never systematically penalizes the total.
type Weights struct {
	Industry     float64
	Investment   float64
	Experience   float64
	Geography    float64
	Verification float64
	Safety       float64
}

// DefaultWeights returns the default factor weights.
func DefaultWeights() Weights {
	return Weights{
		Industry:     0.30,
		Investment:   0.25,
		Experience:   0.15,
		Geography:    0.10,
		Verification: 0.15,
		Safety:       0.10,
	}
}

// Policy bundles the configurable scoring constants. None of the defaults
// are load-bearing business rules; deployments tune them freely.
type Policy struct {
	Weights Weights

	// MaxPreferredDistanceMeters is the distance at which geographic
	// alignment reaches zero.
	MaxPreferredDistanceMeters float64

	// Experience-gap decay constants in years. Cross-role gaps are more
	// tolerable than peer-to-peer gaps.
	CrossRoleExperienceDecay float64
	SameRoleExperienceDecay  float64

	// SuspiciousMatchesPerDay saturates the suspicious-activity risk term.
	SuspiciousMatchesPerDay int
}

// DefaultPolicy returns the default scoring policy.
func DefaultPolicy() Policy {
	return Policy{
		Weights:                    DefaultWeights(),
		MaxPreferredDistanceMeters: 500_000,
		CrossRoleExperienceDecay:   15,
		SameRoleExperienceDecay:    5,
		SuspiciousMatchesPerDay:    20,
	}
}

// Scorer computes compatibility between profile pairs.
type Scorer struct {
	policy Policy
}

// New creates a scorer with the given policy.
func New(policy Policy) *Scorer {
	return &Scorer{policy: policy}
}

// Score computes the weighted compatibility between subject and candidate.
// The returned Factors map contains an entry for every factor; nil marks a
// factor that did not apply to this pair and whose weight was renormalized
// away. The only error is ErrInvalidProfile for a profile missing identity
// fields; missing optional data degrades to neutral, it never fails.
func (s *Scorer) Score(subject, candidate *domain.Profile) (domain.CompatibilityResult, error) {
	if err := validateIdentity(subject); err != nil {
		return domain.CompatibilityResult{}, err
	}
	if err := validateIdentity(candidate); err != nil {
		return domain.CompatibilityResult{}, err
	}

	factors := map[domain.Factor]*float64{
		domain.FactorIndustry:     ptr(s.industryAlignment(subject, candidate)),
		domain.FactorInvestment:   s.investmentAlignment(subject, candidate),
		domain.FactorExperience:   ptr(s.experienceAlignment(subject, candidate)),
		domain.FactorGeography:    ptr(s.geographicAlignment(subject, candidate)),
		domain.FactorVerification: ptr(s.verificationScore(subject, candidate)),
		domain.FactorSafety:       ptr(s.safetyScore(subject, candidate)),
	}

	total := s.weightedTotal(factors)
	return domain.CompatibilityResult{Total: total, Factors: factors}, nil
}

func validateIdentity(p *domain.Profile) error {
	if p == nil {
		return &domain.ErrInvalidProfile{Reason: "nil profile"}
	}
	if p.ID == "" {
		return &domain.ErrInvalidProfile{Reason: "missing id"}
	}
	if !p.Role.Valid() {
		return &domain.ErrInvalidProfile{ID: p.ID, Reason: "missing or unknown role"}
	}
	return nil
}

// weightedTotal combines the non-nil factors, renormalizing their weights to
// sum to one so the result stays on [0,1].
func (s *Scorer) weightedTotal(factors map[domain.Factor]*float64) float64 {
	var sum, weightSum float64
	for _, f := range domain.AllFactors {
		v := factors[f]
		if v == nil {
			continue
		}
		w := s.factorWeight(f)
		sum += w * *v
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return clamp01(sum / weightSum)
}

func (s *Scorer) factorWeight(f domain.Factor) float64 {
	w := s.policy.Weights
	switch f {
	case domain.FactorIndustry:
		return w.Industry
	case domain.FactorInvestment:
		return w.Investment
	case domain.FactorExperience:
		return w.Experience
	case domain.FactorGeography:
		return w.Geography
	case domain.FactorVerification:
		return w.Verification
	case domain.FactorSafety:
		return w.Safety
	}
	return 0
}

// industryAlignment measures tag overlap with the larger set's cardinality
// as denominator, so a full subset still earns full credit. Symmetric.
// Empty sets score zero rather than erroring.
func (s *Scorer) industryAlignment(a, b *domain.Profile) float64 {
	tagsA := normalizeTags(a.IndustryTags())
	tagsB := normalizeTags(b.IndustryTags())
	if len(tagsA) == 0 || len(tagsB) == 0 {
		return 0
	}

	inter := 0
	for tag := range tagsA {
		if _, ok := tagsB[tag]; ok {
			inter++
		}
	}

	denom := len(tagsA)
	if len(tagsB) > denom {
		denom = len(tagsB)
	}
	return float64(inter) / float64(denom)
}

func normalizeTags(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

// investmentAlignment applies only to entrepreneur/funder pairs where the
// entrepreneur states a desired amount and the funder a range; otherwise it
// returns nil and is skipped. Inside the range the score is the linear
// position above the funder's minimum; outside it decays with the overshoot
// rather than cutting off hard.
func (s *Scorer) investmentAlignment(a, b *domain.Profile) *float64 {
	ent, fun := splitPair(a, b)
	if ent == nil || fun == nil {
		return nil
	}

	amount := ent.DesiredInvestment
	min, max := fun.InvestmentMin, fun.InvestmentMax
	if amount <= 0 || max <= 0 || max < min {
		return nil
	}

	if amount >= min && amount <= max {
		if max == min {
			return ptr(1.0)
		}
		return ptr(clamp01(1 - (max-amount)/(max-min)))
	}

	// Outside the range: partial credit decaying with the overshoot,
	// normalized by the violated bound.
	var overshoot, bound float64
	if amount > max {
		overshoot, bound = amount-max, max
	} else {
		overshoot, bound = min-amount, min
	}
	if bound <= 0 {
		return ptr(0.0)
	}
	return ptr(math.Max(0, 1-overshoot/bound))
}

// splitPair returns the entrepreneur and funder data of a pair, nil for
// whichever side is absent.
func splitPair(a, b *domain.Profile) (*domain.EntrepreneurData, *domain.FunderData) {
	var ent *domain.EntrepreneurData
	var fun *domain.FunderData
	for _, p := range []*domain.Profile{a, b} {
		switch p.Role {
		case domain.RoleEntrepreneur:
			if ent == nil {
				ent = p.Entrepreneur
			}
		case domain.RoleFunder:
			if fun == nil {
				fun = p.Funder
			}
		}
	}
	return ent, fun
}

// experienceAlignment decays linearly with the experience gap. Cross-role
// pairs use a gentler decay constant than same-role pairs.
func (s *Scorer) experienceAlignment(a, b *domain.Profile) float64 {
	decay := s.policy.CrossRoleExperienceDecay
	if a.Role == b.Role {
		decay = s.policy.SameRoleExperienceDecay
	}
	if decay <= 0 {
		return 0
	}
	gap := math.Abs(float64(a.YearsExperience() - b.YearsExperience()))
	return math.Max(0, 1-gap/decay)
}

// geographicAlignment decays linearly with distance. A missing location on
// either side scores full: unknown must never be treated as a mismatch.
func (s *Scorer) geographicAlignment(a, b *domain.Profile) float64 {
	if a.Location == nil || b.Location == nil {
		return 1
	}
	if s.policy.MaxPreferredDistanceMeters <= 0 {
		return 1
	}
	d := a.Location.DistanceMeters(*b.Location)
	return math.Max(0, 1-d/s.policy.MaxPreferredDistanceMeters)
}

// verificationScore averages both parties' normalized verification ordinals.
func (s *Scorer) verificationScore(a, b *domain.Profile) float64 {
	return (a.VerificationLevel.Normalized() + b.VerificationLevel.Normalized()) / 2
}

// safetyScore takes the weaker party's safety, so one risky side cannot be
// offset by the other.
func (s *Scorer) safetyScore(a, b *domain.Profile) float64 {
	return math.Min(1-s.riskScore(a), 1-s.riskScore(b))
}

func ptr(v float64) *float64 { return &v }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
