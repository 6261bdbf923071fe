package scoring

import "github.com/veyralabs/fundmatch-go/internal/domain"

// Risk term weights. Policy constants, not invariants.
const (
	riskWeightIncomplete = 0.3
	riskWeightEmail      = 0.2
	riskWeightPhone      = 0.2
	riskWeightActivity   = 0.3
)

// riskScore estimates how risky a single profile looks, on [0,1].
// It is a heuristic, not a fraud verdict: incomplete profiles, unverified
// contact channels, and an abnormal recent match rate each add risk.
func (s *Scorer) riskScore(p *domain.Profile) float64 {
	risk := riskWeightIncomplete * s.missingFieldFraction(p)

	if !p.EmailVerified {
		risk += riskWeightEmail
	}
	if !p.PhoneVerified {
		risk += riskWeightPhone
	}

	risk += riskWeightActivity * s.suspiciousActivity(p)

	return clamp01(risk)
}

// missingFieldFraction is the fraction of required role fields left empty.
// A profile with no role data at all counts as fully incomplete.
func (s *Scorer) missingFieldFraction(p *domain.Profile) float64 {
	switch p.Role {
	case domain.RoleEntrepreneur:
		if p.Entrepreneur == nil {
			return 1
		}
		missing := 0
		if len(p.Entrepreneur.Industries) == 0 {
			missing++
		}
		if p.Entrepreneur.DesiredInvestment <= 0 {
			missing++
		}
		if p.Entrepreneur.BusinessType == "" {
			missing++
		}
		return float64(missing) / 3

	case domain.RoleFunder:
		if p.Funder == nil {
			return 1
		}
		missing := 0
		if len(p.Funder.AreasOfInterest) == 0 {
			missing++
		}
		if p.Funder.InvestmentMax <= 0 || p.Funder.InvestmentMax < p.Funder.InvestmentMin {
			missing++
		}
		if len(p.Funder.Certifications) == 0 {
			missing++
		}
		return float64(missing) / 3
	}
	return 1
}

// suspiciousActivity normalizes the 24h match rate against the configured
// threshold, saturating at 1 above it.
func (s *Scorer) suspiciousActivity(p *domain.Profile) float64 {
	threshold := s.policy.SuspiciousMatchesPerDay
	if threshold <= 0 || p.MatchesLast24h <= 0 {
		return 0
	}
	rate := float64(p.MatchesLast24h) / float64(threshold)
	if rate > 1 {
		return 1
	}
	return rate
}
