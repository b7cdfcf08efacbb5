// Package crawl orchestrates one category's crawl job: search, resolve,
// extract, score, and persist, sharing a correlation ID across every step.
package crawl

import (
	"context"
	"strconv"
	"sync"

	"github.com/jeffrey/intellinieuws/internal/extract"
	"github.com/jeffrey/intellinieuws/internal/models"
	"github.com/jeffrey/intellinieuws/internal/relevance"
	"github.com/jeffrey/intellinieuws/internal/resolver"
	"github.com/jeffrey/intellinieuws/internal/search"
	"github.com/jeffrey/intellinieuws/pkg/logger"
	"github.com/jeffrey/intellinieuws/pkg/metrics"
)

// Searcher is the subset of internal/search the engine needs.
type Searcher interface {
	Search(ctx context.Context, keywords, excludeKeywords []string, cfg search.Config, correlationID string) ([]search.Result, error)
}

// Resolver is the subset of internal/resolver the engine needs.
type Resolver interface {
	ResolveBatch(ctx context.Context, urls []string) map[string]string
}

// Extractor is the subset of internal/extract the engine needs.
type Extractor interface {
	ExtractMetadata(ctx context.Context, sourceURL string, correlationID string) (*models.ArticleCreate, error)
}

// ArticleStore is the persistence surface the engine depends on.
type ArticleStore interface {
	SaveBatch(ctx context.Context, articles []*models.ArticleCreate) (models.SaveResult, error)
	LinkCategory(ctx context.Context, assoc models.ArticleCategoryAssociation) error
}

// CategoryLister optionally supplies the rest of the active categories so a
// saved article can be cross-associated with any other category it also
// scores above threshold against, not only the one being crawled. Nil
// disables the behavior (single-category association only).
type CategoryLister interface {
	ListActive(ctx context.Context) ([]*models.Category, error)
}

// Config bounds the engine's extraction concurrency.
type Config struct {
	MaxConcurrentExtractions int
}

func DefaultConfig() Config {
	return Config{MaxConcurrentExtractions: 5}
}

// Engine implements C9: Search → Resolve → Extract → Score → Persist.
type Engine struct {
	cfg        Config
	search     Searcher
	resolver   Resolver
	extract    Extractor
	store      ArticleStore
	categories CategoryLister // optional; nil disables cross-category re-association
	metrics    *metrics.Metrics
	log        *logger.Logger
}

func New(cfg Config, s Searcher, r Resolver, e Extractor, store ArticleStore, log *logger.Logger) *Engine {
	if cfg.MaxConcurrentExtractions <= 0 {
		cfg.MaxConcurrentExtractions = DefaultConfig().MaxConcurrentExtractions
	}
	if cfg.MaxConcurrentExtractions > 15 {
		cfg.MaxConcurrentExtractions = 15
	}
	return &Engine{cfg: cfg, search: s, resolver: r, extract: e, store: store, log: log.WithComponent("crawl-engine")}
}

// WithCategoryLister enables cross-category re-association: once an article
// is saved, it is also scored against every other active category, and an
// additional association is created for any that clear the relevance
// threshold, matching the many-to-many model spec §3 describes.
func (e *Engine) WithCategoryLister(c CategoryLister) *Engine {
	e.categories = c
	return e
}

// WithMetrics attaches the Prometheus bundle used to record
// articles_saved_total/articles_skipped_total. Optional.
func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.metrics = m
	return e
}

// Result summarizes one category crawl for the caller (JobRunner).
type Result struct {
	ArticlesFound int
	ArticlesSaved int
	Articles      []models.Article
}

// Advanced gates whether below-threshold articles are dropped before
// persistence, per spec §4.9 step 4.
type Advanced bool

// Crawl runs the full pipeline for one category.
func (e *Engine) Crawl(ctx context.Context, category *models.Category, advanced Advanced, correlationID string) (Result, error) {
	log := e.log.WithFields(map[string]interface{}{"correlation_id": correlationID, "category_id": category.ID})

	searchCfg := search.DefaultConfig()
	searchCfg.Language = category.Language
	searchCfg.Country = category.Country
	searchCfg.Period = category.CrawlPeriod

	results, err := e.search.Search(ctx, category.Keywords, category.ExcludeKeywords, searchCfg, correlationID)
	if err != nil {
		return Result{}, err
	}
	if len(results) == 0 {
		log.Info("search returned no results")
		return Result{}, nil
	}

	urls := make([]string, 0, len(results))
	for _, r := range results {
		urls = append(urls, r.URL)
	}

	resolved := e.resolver.ResolveBatch(ctx, urls)
	if len(resolved) == 0 {
		log.Info("no URLs resolved to publisher links")
		return Result{}, nil
	}

	publisherURLs := make([]string, 0, len(resolved))
	for _, publisherURL := range resolved {
		publisherURLs = append(publisherURLs, publisherURL)
	}

	articles := e.extractConcurrently(ctx, publisherURLs, correlationID, log)

	categoryLabel := strconv.FormatInt(category.ID, 10)

	scored := make([]*models.ArticleCreate, 0, len(articles))
	belowThreshold := 0
	for _, a := range articles {
		score := relevance.Score(a.Title, a.Content, category)
		a.RelevanceScore = score
		a.KeywordsMatched = relevance.MatchedKeywords(a.Title, a.Content, category)

		if advanced && !relevance.MeetsThreshold(score) {
			belowThreshold++
			continue
		}
		scored = append(scored, a)
	}
	if e.metrics != nil && belowThreshold > 0 {
		e.metrics.ArticlesSkipped.WithLabelValues(categoryLabel, "below_threshold").Add(float64(belowThreshold))
	}

	saveResult, err := e.store.SaveBatch(ctx, scored)
	if err != nil {
		return Result{}, err
	}
	if e.metrics != nil {
		e.metrics.ArticlesSaved.WithLabelValues(categoryLabel, "new").Add(float64(saveResult.New))
		e.metrics.ArticlesSaved.WithLabelValues(categoryLabel, "updated").Add(float64(saveResult.Updated))
		if saveResult.Skipped > 0 {
			e.metrics.ArticlesSkipped.WithLabelValues(categoryLabel, "dedup_or_extraction_failed").Add(float64(saveResult.Skipped))
		}
	}

	for sourceURL, articleID := range saveResult.ArticleID {
		var matched string
		var score float64
		for _, a := range scored {
			if a.SourceURL == sourceURL {
				if len(a.KeywordsMatched) > 0 {
					matched = a.KeywordsMatched[0]
				}
				score = a.RelevanceScore
				break
			}
		}
		assoc := models.ArticleCategoryAssociation{
			ArticleID:      articleID,
			CategoryID:     category.ID,
			RelevanceScore: score,
			KeywordMatched: matched,
		}
		if err := e.store.LinkCategory(ctx, assoc); err != nil {
			log.WithError(err).Warn("failed to link article to category")
		}
	}

	e.crossAssociate(ctx, scored, saveResult, category.ID, log)

	log.WithFields(map[string]interface{}{
		"articles_found": len(articles),
		"articles_saved": saveResult.New + saveResult.Updated,
	}).Info("crawl completed")

	return Result{
		ArticlesFound: len(articles),
		ArticlesSaved: saveResult.New + saveResult.Updated,
	}, nil
}

// crossAssociate re-scores each saved article against every other active
// category and links it wherever it also clears the relevance threshold,
// so an article is not confined to the single category that discovered it.
func (e *Engine) crossAssociate(ctx context.Context, scored []*models.ArticleCreate, saveResult models.SaveResult, skipCategoryID int64, log *logger.Logger) {
	if e.categories == nil || len(scored) == 0 {
		return
	}
	others, err := e.categories.ListActive(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to list active categories for cross-association")
		return
	}

	for _, a := range scored {
		articleID, ok := saveResult.ArticleID[a.SourceURL]
		if !ok {
			continue
		}
		for _, other := range others {
			if other.ID == skipCategoryID {
				continue
			}
			score := relevance.Score(a.Title, a.Content, other)
			if !relevance.MeetsThreshold(score) {
				continue
			}
			matchedKw := relevance.MatchedKeywords(a.Title, a.Content, other)
			var matched string
			if len(matchedKw) > 0 {
				matched = matchedKw[0]
			}
			assoc := models.ArticleCategoryAssociation{
				ArticleID:      articleID,
				CategoryID:     other.ID,
				RelevanceScore: score,
				KeywordMatched: matched,
			}
			if err := e.store.LinkCategory(ctx, assoc); err != nil {
				log.WithError(err).Warn("failed to cross-associate article with category")
			}
		}
	}
}

func (e *Engine) extractConcurrently(ctx context.Context, urls []string, correlationID string, log *logger.Logger) []*models.ArticleCreate {
	maxConcurrent := e.cfg.MaxConcurrentExtractions
	if len(urls) < maxConcurrent {
		maxConcurrent = len(urls)
	}
	if maxConcurrent <= 0 {
		return nil
	}
	semaphore := make(chan struct{}, maxConcurrent)

	var mu sync.Mutex
	var articles []*models.ArticleCreate
	var wg sync.WaitGroup

	for _, u := range urls {
		wg.Add(1)
		go func(sourceURL string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			article, err := e.extract.ExtractMetadata(ctx, sourceURL, correlationID)
			if err != nil {
				log.WithError(err).Warnf("extraction failed for %s", sourceURL)
				return
			}

			mu.Lock()
			articles = append(articles, article)
			mu.Unlock()
		}(u)
	}
	wg.Wait()
	return articles
}

// make resolver.Resolver and extract.Extractor (and search.Client)
// satisfy the narrow interfaces above without importing crawl from them.
var (
	_ Resolver  = (*resolver.Resolver)(nil)
	_ Extractor = (*extract.Extractor)(nil)
	_ Searcher  = (*search.Client)(nil)
)
