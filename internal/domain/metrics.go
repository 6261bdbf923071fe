package domain

// EngineMetrics is the snapshot returned by GET /v1/metrics/engine.
type EngineMetrics struct {
	TotalRequests      int64   `json:"total_requests"`
	ErrorRate          float64 `json:"error_rate"`
	PairsScored        int64   `json:"pairs_scored"`
	RecoCacheHitRate   float64 `json:"reco_cache_hit_rate"`
	SearchCacheHitRate float64 `json:"search_cache_hit_rate"`
	DegradedSearches   int64   `json:"degraded_searches"`
	ProfilesIndexed    int64   `json:"profiles_indexed"`
	Period             string  `json:"period"`
}
