// Package tier holds the static subscription tier catalog. Tiers determine
// default rate limits and feature availability; per-key overrides live on the
// credential itself.
package tier

// Tier names.
const (
	Free       = "free"
	Standard   = "standard"
	Enterprise = "enterprise"
)

// Feature flag names, as used by HasFeature.
const (
	FeatureReasoning     = "include_reasoning"
	FeatureConfidence    = "include_confidence"
	FeatureAdvancedModel = "advanced_model_access"
	FeaturePriority      = "priority_processing"
)

type Profile struct {
	Name                string `json:"name"`
	RateLimitPerMinute  int    `json:"rate_limit_per_minute"`
	RateLimitPerDay     int    `json:"rate_limit_per_day"`
	MaxBatchSize        int    `json:"max_batch_size"`
	IncludeReasoning    bool   `json:"include_reasoning"`
	IncludeConfidence   bool   `json:"include_confidence"`
	AdvancedModelAccess bool   `json:"advanced_model_access"`
	PriorityProcessing  bool   `json:"priority_processing"`
}

var catalog = map[string]Profile{
	Free: {
		Name:               Free,
		RateLimitPerMinute: 5,
		RateLimitPerDay:    100,
		MaxBatchSize:       1,
	},
	Standard: {
		Name:               Standard,
		RateLimitPerMinute: 60,
		RateLimitPerDay:    5000,
		MaxBatchSize:       10,
		IncludeReasoning:   true,
		IncludeConfidence:  true,
	},
	Enterprise: {
		Name:                Enterprise,
		RateLimitPerMinute:  300,
		RateLimitPerDay:     50000,
		MaxBatchSize:        50,
		IncludeReasoning:    true,
		IncludeConfidence:   true,
		AdvancedModelAccess: true,
		PriorityProcessing:  true,
	},
}

// Get returns the profile for a tier name. Unknown tiers fall back to free,
// so a stale tier value on a credential degrades rather than breaks.
func Get(name string) Profile {
	if p, ok := catalog[name]; ok {
		return p
	}
	return catalog[Free]
}

// Valid reports whether name is a known tier.
func Valid(name string) bool {
	_, ok := catalog[name]
	return ok
}

func HasFeature(name, feature string) bool {
	p := Get(name)
	switch feature {
	case FeatureReasoning:
		return p.IncludeReasoning
	case FeatureConfidence:
		return p.IncludeConfidence
	case FeatureAdvancedModel:
		return p.AdvancedModelAccess
	case FeaturePriority:
		return p.PriorityProcessing
	default:
		return false
	}
}
