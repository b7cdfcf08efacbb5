package extract

// SelectorSet is an injectable, per-source list of CSS selectors tried in
// order before falling back to generic extraction. Unlike the teacher's
// hard-coded Dutch-site map, callers pass their own set in, so the same
// binary can crawl any publisher set.
type SelectorSet map[string][]string

// DefaultSelectors returns an empty set: it carries no publisher-specific
// entries, so every source falls back to the generic selectors.
func DefaultSelectors() SelectorSet {
	return SelectorSet{}
}

// For returns the selectors configured for source, or nil if none are
// registered (triggering generic extraction).
func (s SelectorSet) For(source string) []string {
	return s[source]
}

var genericSelectors = []string{
	"article",
	"[role='main'] article",
	"main article",
	".article-content",
	".article-body",
	".post-content",
	"[itemprop='articleBody']",
	".content",
	"main",
	"[role='main']",
}

var navigationPhrases = []string{
	"read more", "read also", "share", "comment", "comments",
	"advertisement", "cookie", "privacy", "follow us", "newsletter",
	"subscribe", "sign up", "log in",
}
