package domain

// FilterOp is the comparison applied by a search filter.
type FilterOp string

const (
	FilterEquals   FilterOp = "eq"
	FilterContains FilterOp = "contains"
	FilterMin      FilterOp = "min"
	FilterMax      FilterOp = "max"
)

// SearchFilter narrows search results on one field.
type SearchFilter struct {
	Field string   `json:"field"`
	Op    FilterOp `json:"op"`
	Value string   `json:"value"`
}

// SearchQuery describes one search request. Text tokens are combined with
// AND semantics: a profile must match every token to be a candidate.
type SearchQuery struct {
	Text    string         `json:"q"`
	Role    Role           `json:"role"`
	Filters []SearchFilter `json:"filters,omitempty"`
	SortBy  string         `json:"sort_by,omitempty"`
	SortAsc bool           `json:"sort_asc,omitempty"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
}

// SearchResult is one page of matching profiles.
type SearchResult struct {
	Profiles []*Profile `json:"profiles"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	Limit    int        `json:"limit"`
	Degraded bool       `json:"degraded,omitempty"`
}
