package models

// Validation limits carried over from the teacher's article validation
// constants, narrowed to what SPEC_FULL's Article/Category actually use.
const (
	MaxTitleLength     = 500
	MaxURLLength       = 2000
	MinKeywordLength   = 1
	MaxKeywordLength   = 100
)

// Relevance thresholds per SPEC_FULL §4.8.
const (
	DefaultCategoryRelevanceThreshold = 0.3
	HighConfidenceRelevanceThreshold  = 0.7
)
