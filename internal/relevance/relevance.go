// Package relevance scores how well an extracted article matches a
// category's keyword set.
package relevance

import (
	"strings"

	"github.com/jeffrey/intellinieuws/internal/models"
)

const (
	titleMatchWeight     = 0.7
	contentMatchWeight   = 0.3
	maxFrequencyBonus    = 0.3
	frequencyBonusPerHit = 0.1
	excludePenaltyPerHit = 0.2
)

// Score computes the weighted relevance of an article against a category:
// per-keyword title/content hits plus a diminishing-returns frequency
// bonus, averaged with keyword coverage, then penalized per matched
// exclude keyword. Result is clamped to [0, 1].
func Score(title, content string, category *models.Category) float64 {
	if category == nil || len(category.Keywords) == 0 {
		return 0
	}

	combined := strings.ToLower(title + " " + content)
	if strings.TrimSpace(combined) == "" {
		return 0
	}
	titleLower := strings.ToLower(title)
	contentLower := strings.ToLower(content)

	var keywordScores []float64
	matches := 0

	for _, keyword := range category.Keywords {
		kw := strings.ToLower(keyword)
		if kw == "" || !strings.Contains(combined, kw) {
			continue
		}
		matches++

		var score float64
		if strings.Contains(titleLower, kw) {
			score += titleMatchWeight
		}
		if strings.Contains(contentLower, kw) {
			score += contentMatchWeight
		}

		frequency := strings.Count(combined, kw)
		bonus := float64(frequency) * frequencyBonusPerHit
		if bonus > maxFrequencyBonus {
			bonus = maxFrequencyBonus
		}
		score += bonus

		keywordScores = append(keywordScores, clamp01(score))
	}

	if len(keywordScores) == 0 {
		return 0
	}

	avgKeywordScore := sum(keywordScores) / float64(len(keywordScores))
	coverage := float64(matches) / float64(len(category.Keywords))
	base := (avgKeywordScore + coverage) / 2

	if len(category.ExcludeKeywords) > 0 {
		var penalty float64
		for _, exclude := range category.ExcludeKeywords {
			if strings.Contains(combined, strings.ToLower(exclude)) {
				penalty += excludePenaltyPerHit
			}
		}
		base -= penalty
		if base < 0 {
			base = 0
		}
	}

	return clamp01(base)
}

// MatchedKeywords returns the subset of category.Keywords present in the
// combined title/content text, for association bookkeeping.
func MatchedKeywords(title, content string, category *models.Category) []string {
	if category == nil {
		return nil
	}
	combined := strings.ToLower(title + " " + content)
	var matched []string
	for _, keyword := range category.Keywords {
		if strings.Contains(combined, strings.ToLower(keyword)) {
			matched = append(matched, keyword)
		}
	}
	return matched
}

// MeetsThreshold reports whether score clears the category-association
// minimum relevance bar.
func MeetsThreshold(score float64) bool {
	return score >= models.DefaultCategoryRelevanceThreshold
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
