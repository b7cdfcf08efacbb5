package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeffrey/intellinieuws/internal/extract"
	"github.com/jeffrey/intellinieuws/internal/models"
	"github.com/jeffrey/intellinieuws/pkg/logger"
)

// ArticleRepository handles persistence for deduplicated articles and their
// category associations.
type ArticleRepository struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

func NewArticleRepository(db *pgxpool.Pool, log *logger.Logger) *ArticleRepository {
	return &ArticleRepository{db: db, logger: log.WithComponent("article-repo")}
}

// SaveBatch dedup-inserts articles by url_hash, updating last_seen on
// collision, and returns the (new, updated, skipped) counts plus the
// resulting article IDs keyed by source URL for association wiring.
func (r *ArticleRepository) SaveBatch(ctx context.Context, articles []*models.ArticleCreate) (models.SaveResult, error) {
	result := models.SaveResult{ArticleID: make(map[string]int64, len(articles))}
	if len(articles) == 0 {
		return result, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to begin save-batch transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, a := range articles {
		if !a.ExtractionSuccess || strings.TrimSpace(a.SourceURL) == "" {
			result.Skipped++
			continue
		}

		urlHash := extract.URLHash(a.SourceURL)
		contentHash := extract.ContentHash(a.Content)
		now := time.Now()

		var id int64
		var inserted bool
		err := tx.QueryRow(ctx, `
			INSERT INTO articles (
				title, content, author, publish_date, source_url, image_url,
				url_hash, content_hash, keywords_matched, relevance_score,
				first_seen, last_seen
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
			ON CONFLICT (url_hash) DO UPDATE SET last_seen = $11
			RETURNING id, (xmax = 0) AS inserted
		`,
			a.Title, nullIfEmpty(a.Content), nullIfEmpty(a.Author), a.PublishDate,
			a.SourceURL, nullIfEmpty(a.ImageURL), urlHash, nullIfEmpty(contentHash),
			a.KeywordsMatched, a.RelevanceScore, now,
		).Scan(&id, &inserted)
		if err != nil {
			return result, fmt.Errorf("failed to upsert article %s: %w", a.SourceURL, err)
		}

		result.ArticleID[a.SourceURL] = id
		if inserted {
			result.New++
		} else {
			result.Updated++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("failed to commit save-batch transaction: %w", err)
	}
	return result, nil
}

// LinkCategory upserts the article-category association with its
// relevance metadata, used once an article clears the relevance threshold
// for a category.
func (r *ArticleRepository) LinkCategory(ctx context.Context, assoc models.ArticleCategoryAssociation) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO article_category_associations (
			article_id, category_id, relevance_score, keyword_matched, search_query_used, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$6)
		ON CONFLICT (article_id, category_id) DO UPDATE
		SET relevance_score = $3, keyword_matched = $4, search_query_used = $5, updated_at = $6
	`, assoc.ArticleID, assoc.CategoryID, assoc.RelevanceScore, assoc.KeywordMatched, assoc.SearchQueryUsed, time.Now())
	if err != nil {
		return fmt.Errorf("failed to link article %d to category %d: %w", assoc.ArticleID, assoc.CategoryID, err)
	}
	return nil
}

// ExistsByURLHashBatch reports which of the given source URLs already have
// a stored article, keyed by source URL.
func (r *ArticleRepository) ExistsByURLHashBatch(ctx context.Context, sourceURLs []string) (map[string]bool, error) {
	exists := make(map[string]bool, len(sourceURLs))
	if len(sourceURLs) == 0 {
		return exists, nil
	}

	hashToURL := make(map[string]string, len(sourceURLs))
	hashes := make([]string, 0, len(sourceURLs))
	for _, u := range sourceURLs {
		h := extract.URLHash(u)
		hashToURL[h] = u
		hashes = append(hashes, h)
		exists[u] = false
	}

	rows, err := r.db.Query(ctx, `SELECT url_hash FROM articles WHERE url_hash = ANY($1)`, hashes)
	if err != nil {
		return nil, fmt.Errorf("failed to check batch url existence: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			continue
		}
		if u, ok := hashToURL[hash]; ok {
			exists[u] = true
		}
	}
	return exists, nil
}

// GetByID retrieves a single article by its primary key.
func (r *ArticleRepository) GetByID(ctx context.Context, id int64) (*models.Article, error) {
	var a models.Article
	err := r.db.QueryRow(ctx, `
		SELECT id, title, COALESCE(content, ''), COALESCE(author, ''), publish_date,
		       source_url, COALESCE(image_url, ''), url_hash, COALESCE(content_hash, ''),
		       keywords_matched, relevance_score, first_seen, last_seen
		FROM articles WHERE id = $1
	`, id).Scan(
		&a.ID, &a.Title, &a.Content, &a.Author, &a.PublishDate,
		&a.SourceURL, &a.ImageURL, &a.URLHash, &a.ContentHash,
		&a.KeywordsMatched, &a.RelevanceScore, &a.FirstSeen, &a.LastSeen,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get article %d: %w", id, err)
	}
	return &a, nil
}

// ListByCategory returns articles associated with a category, most
// recently seen first; relevance score does not affect the order.
func (r *ArticleRepository) ListByCategory(ctx context.Context, categoryID int64, limit, offset int) ([]models.Article, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.title, COALESCE(a.content, ''), COALESCE(a.author, ''), a.publish_date,
		       a.source_url, COALESCE(a.image_url, ''), a.url_hash, COALESCE(a.content_hash, ''),
		       a.keywords_matched, aca.relevance_score, a.first_seen, a.last_seen
		FROM articles a
		JOIN article_category_associations aca ON aca.article_id = a.id
		WHERE aca.category_id = $1
		ORDER BY a.last_seen DESC
		LIMIT $2 OFFSET $3
	`, categoryID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles for category %d: %w", categoryID, err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		var a models.Article
		if err := rows.Scan(
			&a.ID, &a.Title, &a.Content, &a.Author, &a.PublishDate,
			&a.SourceURL, &a.ImageURL, &a.URLHash, &a.ContentHash,
			&a.KeywordsMatched, &a.RelevanceScore, &a.FirstSeen, &a.LastSeen,
		); err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// DeleteOlderThan removes articles last seen before cutoff. The
// scheduler's cleanup sweep does not call it; it only prunes jobs.
func (r *ArticleRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM articles WHERE last_seen < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale articles: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
