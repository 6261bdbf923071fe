package domain

// Factor names one component of the compatibility score. The Factors map of
// a result always contains every factor attempted; a nil value means the
// factor was skipped for the pair (e.g. investment fit for a same-role pair)
// and its weight was renormalized away.
type Factor string

const (
	FactorIndustry     Factor = "industry_alignment"
	FactorInvestment   Factor = "investment_alignment"
	FactorExperience   Factor = "experience_alignment"
	FactorGeography    Factor = "geographic_alignment"
	FactorVerification Factor = "verification"
	FactorSafety       Factor = "safety"
)

// AllFactors lists every factor in presentation order.
var AllFactors = []Factor{
	FactorIndustry,
	FactorInvestment,
	FactorExperience,
	FactorGeography,
	FactorVerification,
	FactorSafety,
}

// CompatibilityResult is the output of the scorer. Total is on the canonical
// [0,1] scale; conversion to percent happens only at the API boundary.
type CompatibilityResult struct {
	Total   float64             `json:"total"`
	Factors map[Factor]*float64 `json:"factors"`
}

// MatchCandidate pairs a candidate profile with its ranking score and the
// human-readable reasons it was recommended. Ephemeral: recomputed per
// request, optionally cached, never persisted.
type MatchCandidate struct {
	Profile       *Profile            `json:"profile"`
	Score         float64             `json:"score"`
	Compatibility float64             `json:"compatibility"`
	Factors       map[Factor]*float64 `json:"factors"`
	Reasons       []string            `json:"reasons"`
}

// Recommendations is a ranked page of candidates for one subject.
type Recommendations struct {
	UserID     string           `json:"user_id"`
	Candidates []MatchCandidate `json:"candidates"`
}
