package index

import (
	"strconv"
	"strings"

	"github.com/veyralabs/fundmatch-go/internal/domain"
)

// FieldKind classifies how a searchable field is tokenized and filtered.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldArray
	FieldNumber
)

// FieldSpec describes one searchable field: its index weight, its kind, and
// accessors for tokenization, filtering and sorting.
type FieldSpec struct {
	Name   string
	Weight float64
	Kind   FieldKind

	// strings returns the text/array values to tokenize and to test
	// contains/eq filters against. Nil for number fields.
	strings func(p *domain.Profile) []string

	// number returns the numeric value for range filters and sorting.
	// Nil for text/array fields.
	number func(p *domain.Profile) float64
}

// fieldTables maps each role to its static searchable-field table. Weights
// record field importance in the stored index entries; retrieval itself is
// strict AND intersection, so weights do not rank results.
var fieldTables = map[domain.Role][]FieldSpec{
	domain.RoleEntrepreneur: {
		{
			Name: "industries", Weight: 3, Kind: FieldArray,
			strings: func(p *domain.Profile) []string {
				if p.Entrepreneur == nil {
					return nil
				}
				return p.Entrepreneur.Industries
			},
		},
		{
			Name: "business_type", Weight: 2, Kind: FieldText,
			strings: func(p *domain.Profile) []string {
				if p.Entrepreneur == nil || p.Entrepreneur.BusinessType == "" {
					return nil
				}
				return []string{p.Entrepreneur.BusinessType}
			},
		},
		{
			Name: "years_experience", Weight: 1, Kind: FieldNumber,
			number: func(p *domain.Profile) float64 {
				return float64(p.YearsExperience())
			},
		},
		{
			Name: "desired_investment", Weight: 1, Kind: FieldNumber,
			number: func(p *domain.Profile) float64 {
				if p.Entrepreneur == nil {
					return 0
				}
				return p.Entrepreneur.DesiredInvestment
			},
		},
	},
	domain.RoleFunder: {
		{
			Name: "areas_of_interest", Weight: 3, Kind: FieldArray,
			strings: func(p *domain.Profile) []string {
				if p.Funder == nil {
					return nil
				}
				return p.Funder.AreasOfInterest
			},
		},
		{
			Name: "certifications", Weight: 2, Kind: FieldArray,
			strings: func(p *domain.Profile) []string {
				if p.Funder == nil {
					return nil
				}
				return p.Funder.Certifications
			},
		},
		{
			Name: "years_experience", Weight: 1, Kind: FieldNumber,
			number: func(p *domain.Profile) float64 {
				return float64(p.YearsExperience())
			},
		},
		{
			Name: "investment_min", Weight: 1, Kind: FieldNumber,
			number: func(p *domain.Profile) float64 {
				if p.Funder == nil {
					return 0
				}
				return p.Funder.InvestmentMin
			},
		},
		{
			Name: "investment_max", Weight: 1, Kind: FieldNumber,
			number: func(p *domain.Profile) float64 {
				if p.Funder == nil {
					return 0
				}
				return p.Funder.InvestmentMax
			},
		},
	},
}

// fieldSpec looks up one field of a role's table.
func fieldSpec(role domain.Role, name string) (FieldSpec, bool) {
	for _, spec := range fieldTables[role] {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

// profileTokens tokenizes every searchable field of a profile, keeping the
// highest field weight for tokens that appear in several fields.
func profileTokens(p *domain.Profile) map[string]float64 {
	tokens := make(map[string]float64)
	for _, spec := range fieldTables[p.Role] {
		if spec.strings == nil {
			continue
		}
		for _, value := range spec.strings(p) {
			for _, tok := range Tokenize(value) {
				if w, ok := tokens[tok]; !ok || spec.Weight > w {
					tokens[tok] = spec.Weight
				}
			}
		}
	}
	return tokens
}

// matchesFilter evaluates one filter against a profile. Unknown fields never
// match; malformed numeric values never match.
func matchesFilter(p *domain.Profile, f domain.SearchFilter) bool {
	spec, ok := fieldSpec(p.Role, f.Field)
	if !ok {
		return false
	}

	switch f.Op {
	case domain.FilterEquals, domain.FilterContains:
		if spec.strings == nil {
			return false
		}
		want := strings.ToLower(strings.TrimSpace(f.Value))
		for _, v := range spec.strings(p) {
			if strings.ToLower(strings.TrimSpace(v)) == want {
				return true
			}
		}
		return false

	case domain.FilterMin, domain.FilterMax:
		if spec.number == nil {
			return false
		}
		bound, err := strconv.ParseFloat(f.Value, 64)
		if err != nil {
			return false
		}
		v := spec.number(p)
		if f.Op == domain.FilterMin {
			return v >= bound
		}
		return v <= bound
	}
	return false
}

// sortValue returns the numeric sort key for a profile, false if the field
// is unknown or non-numeric for the role.
func sortValue(p *domain.Profile, field string) (float64, bool) {
	switch field {
	case "verification_level":
		return float64(p.VerificationLevel), true
	case "activity":
		return float64(p.ActivityCount30d), true
	}
	spec, ok := fieldSpec(p.Role, field)
	if !ok || spec.number == nil {
		return 0, false
	}
	return spec.number(p), true
}
