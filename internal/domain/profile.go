// Package domain holds the core types shared across the matching engine:
// profiles, match candidates, search queries and the error taxonomy.
package domain

import (
	"math"
	"time"
)

// Role identifies which side of the marketplace a profile belongs to.
type Role string

const (
	RoleEntrepreneur Role = "entrepreneur"
	RoleFunder       Role = "funder"
)

// Opposite returns the counterpart role for candidate-pool resolution.
func (r Role) Opposite() Role {
	if r == RoleEntrepreneur {
		return RoleFunder
	}
	return RoleEntrepreneur
}

// Valid reports whether the role is one of the two known values.
func (r Role) Valid() bool {
	return r == RoleEntrepreneur || r == RoleFunder
}

// VerificationLevel is an ordinal trust signal. Higher means more verified.
type VerificationLevel int

const (
	VerificationNone VerificationLevel = iota
	VerificationBusinessPlan
	VerificationUseCase
	VerificationDemographicAlignment
	VerificationAppUXUI
	VerificationFiscalAnalysis

	verificationLevelMax = VerificationFiscalAnalysis
)

// Normalized maps the level onto [0,1].
func (v VerificationLevel) Normalized() float64 {
	if v < VerificationNone {
		return 0
	}
	if v > verificationLevelMax {
		return 1
	}
	return float64(v) / float64(verificationLevelMax)
}

// SubscriptionTier is a business-policy ordinal used only as a ranking
// amplifier, never as a compatibility input.
type SubscriptionTier int

const (
	TierBasic SubscriptionTier = iota
	TierChrome
	TierBronze
	TierSilver
	TierGold
	TierPlatinum
)

func (t SubscriptionTier) String() string {
	switch t {
	case TierBasic:
		return "basic"
	case TierChrome:
		return "chrome"
	case TierBronze:
		return "bronze"
	case TierSilver:
		return "silver"
	case TierGold:
		return "gold"
	case TierPlatinum:
		return "platinum"
	}
	return "unknown"
}

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

const earthRadiusMeters = 6371000

// DistanceMeters returns the haversine great-circle distance to other.
func (g GeoPoint) DistanceMeters(other GeoPoint) float64 {
	lat1 := g.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - g.Lat) * math.Pi / 180
	dLon := (other.Lon - g.Lon) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// EntrepreneurData holds the entrepreneur-only attributes.
type EntrepreneurData struct {
	Industries        []string `json:"industries"`
	DesiredInvestment float64  `json:"desired_investment"`
	YearsExperience   int      `json:"years_experience"`
	BusinessType      string   `json:"business_type"`
}

// FunderData holds the funder-only attributes.
type FunderData struct {
	AreasOfInterest []string `json:"areas_of_interest"`
	InvestmentMin   float64  `json:"investment_min"`
	InvestmentMax   float64  `json:"investment_max"`
	YearsExperience int      `json:"years_experience"`
	Certifications  []string `json:"certifications"`
}

// MatchStatus is the resolution state of a profile pair.
type MatchStatus string

const (
	MatchStatusNone     MatchStatus = "none"
	MatchStatusPending  MatchStatus = "pending"
	MatchStatusMatched  MatchStatus = "matched"
	MatchStatusRejected MatchStatus = "rejected"
)

// MatchOutcome is one entry of a profile's match history.
type MatchOutcome struct {
	CandidateID string      `json:"candidate_id"`
	Status      MatchStatus `json:"status"`
	At          time.Time   `json:"at"`
}

// Profile is one marketplace participant. Exactly one of Entrepreneur or
// Funder is populated, matching Role; the accessors below degrade to zero
// values on cross-role reads instead of failing.
type Profile struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`

	Entrepreneur *EntrepreneurData `json:"entrepreneur,omitempty"`
	Funder       *FunderData       `json:"funder,omitempty"`

	VerificationLevel VerificationLevel `json:"verification_level"`
	Tier              SubscriptionTier  `json:"subscription_tier"`
	Location          *GeoPoint         `json:"location,omitempty"`

	EmailVerified bool `json:"email_verified"`
	PhoneVerified bool `json:"phone_verified"`

	ActivityCount30d int            `json:"activity_count_30d"`
	MatchesLast24h   int            `json:"matches_last_24h"`
	MatchHistory     []MatchOutcome `json:"match_history,omitempty"`
}

// IndustryTags returns the profile's industry/interest tags regardless of
// role: industries for entrepreneurs, areas of interest for funders.
// Cross-role or missing data yields nil, never an error.
func (p *Profile) IndustryTags() []string {
	switch p.Role {
	case RoleEntrepreneur:
		if p.Entrepreneur != nil {
			return p.Entrepreneur.Industries
		}
	case RoleFunder:
		if p.Funder != nil {
			return p.Funder.AreasOfInterest
		}
	}
	return nil
}

// YearsExperience returns the role-specific experience, 0 when unset.
func (p *Profile) YearsExperience() int {
	switch p.Role {
	case RoleEntrepreneur:
		if p.Entrepreneur != nil {
			return p.Entrepreneur.YearsExperience
		}
	case RoleFunder:
		if p.Funder != nil {
			return p.Funder.YearsExperience
		}
	}
	return 0
}

// RoleData reports whether the profile carries the attribute block matching
// its declared role.
func (p *Profile) RoleData() bool {
	switch p.Role {
	case RoleEntrepreneur:
		return p.Entrepreneur != nil
	case RoleFunder:
		return p.Funder != nil
	}
	return false
}
