package models

import "time"

// Article is a persisted, deduplicated news article.
type Article struct {
	ID              int64      `json:"id" db:"id"`
	Title           string     `json:"title" db:"title"`
	Content         string     `json:"content,omitempty" db:"content"`
	Author          string     `json:"author,omitempty" db:"author"`
	PublishDate     *time.Time `json:"publish_date,omitempty" db:"publish_date"`
	SourceURL       string     `json:"source_url" db:"source_url"`
	ImageURL        string     `json:"image_url,omitempty" db:"image_url"`
	URLHash         string     `json:"-" db:"url_hash"`
	ContentHash     string     `json:"-" db:"content_hash"`
	KeywordsMatched []string   `json:"keywords_matched,omitempty" db:"keywords_matched"`
	RelevanceScore  float64    `json:"relevance_score" db:"relevance_score"`
	FirstSeen       time.Time  `json:"first_seen" db:"first_seen"`
	LastSeen        time.Time  `json:"last_seen" db:"last_seen"`
}

// ArticleCreate is the input shape produced by the extraction pipeline,
// before persistence assigns an ID and hashes.
type ArticleCreate struct {
	Title           string
	Content         string
	Author          string
	PublishDate     *time.Time
	SourceURL       string
	ImageURL        string
	KeywordsMatched []string
	RelevanceScore  float64

	// Populated by the extraction/resolution pipeline for observability,
	// not persisted on the Article row itself.
	GoogleNewsURL      string
	FinalRedirectedURL string
	ExtractionMethod   string
	ExtractionSuccess  bool
	ExtractionError    string
}

// ArticleCategoryAssociation is the many-to-many join row between an
// Article and a Category, carrying per-pairing relevance metadata.
type ArticleCategoryAssociation struct {
	ArticleID       int64     `db:"article_id"`
	CategoryID      int64     `db:"category_id"`
	RelevanceScore  float64   `db:"relevance_score"`
	KeywordMatched  string    `db:"keyword_matched"`
	SearchQueryUsed string    `db:"search_query_used"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// SaveResult is the outcome of a dedup-on-save batch.
type SaveResult struct {
	New       int
	Updated   int
	Skipped   int
	ArticleID map[string]int64 // source_url -> article id, for association wiring
}
