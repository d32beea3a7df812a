// Package scraper runs the composite workflow behind POST /api/scraper:
// crawl a target URL, extract application fields from the first page, and
// persist the assembled record. The pipeline is strictly linear; any stage
// failure aborts the request and nothing undoes external calls that have
// already run.
package scraper

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/appvine/apptrack/internal/apperr"
	"github.com/appvine/apptrack/internal/application"
	"github.com/appvine/apptrack/internal/archive"
	"github.com/appvine/apptrack/internal/crawl"
	"github.com/appvine/apptrack/internal/extract"
	"github.com/appvine/apptrack/internal/publisher"
)

// Crawler submits a crawl of a target URL and returns its page records.
type Crawler interface {
	Run(ctx context.Context, target string, maxRequests int) ([]crawl.Page, error)
}

// Store persists assembled application records.
type Store interface {
	Create(ctx context.Context, fields application.CreateFields) (application.Application, error)
}

// Result bundles the persisted record with the raw intermediate artifacts
// so callers can inspect what the pipeline saw.
type Result struct {
	Pages       []crawl.Page
	Extracted   map[string]any
	Application application.Application
}

// Config wires the pipeline's collaborators. Crawler may be nil when the
// crawl credential is unconfigured; Scrape reports that as a configuration
// error at request time.
type Config struct {
	Crawler       Crawler
	Extractor     *extract.Extractor
	Store         Store
	Archive       archive.Store
	Publisher     publisher.Publisher
	Topic         string
	ArchivePrefix string
	CrawlBudget   time.Duration
}

// Service executes the scrape pipeline.
type Service struct {
	crawler       Crawler
	extractor     *extract.Extractor
	store         Store
	archive       archive.Store
	pub           publisher.Publisher
	topic         string
	archivePrefix string
	crawlBudget   time.Duration
	logger        *zap.Logger
}

// New builds a scraper Service.
func New(cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := cfg.ArchivePrefix
	if prefix == "" {
		prefix = "scrapes"
	}
	return &Service{
		crawler:       cfg.Crawler,
		extractor:     cfg.Extractor,
		store:         cfg.Store,
		archive:       cfg.Archive,
		pub:           cfg.Publisher,
		topic:         cfg.Topic,
		archivePrefix: prefix,
		crawlBudget:   cfg.CrawlBudget,
		logger:        logger,
	}
}

// Scrape runs the full pipeline for target. maxRequests <= 0 means the
// crawl client's default bound.
func (s *Service) Scrape(ctx context.Context, target string, maxRequests int) (Result, error) {
	if target == "" {
		return Result{}, apperr.InvalidInput("url is required")
	}
	if s.crawler == nil {
		return Result{}, apperr.Configuration("crawling service is not configured")
	}

	crawlCtx := ctx
	if s.crawlBudget > 0 {
		var cancel context.CancelFunc
		crawlCtx, cancel = context.WithTimeout(ctx, s.crawlBudget)
		defer cancel()
	}
	pages, err := s.crawler.Run(crawlCtx, target, maxRequests)
	if err != nil {
		return Result{}, err
	}
	if len(pages) == 0 {
		return Result{}, apperr.Parse("crawl returned no content")
	}

	// Only the first crawled page feeds extraction.
	fields, err := s.extractor.Extract(ctx, pages[0].Text)
	if err != nil {
		return Result{}, err
	}

	createFields, err := assemble(fields)
	if err != nil {
		return Result{}, err
	}

	app, err := s.store.Create(ctx, createFields)
	if err != nil {
		return Result{}, err
	}

	s.archivePage(ctx, app.ID, pages[0])
	s.publishCreated(ctx, app, target)

	return Result{Pages: pages, Extracted: fields, Application: app}, nil
}

// assemble coerces the extracted mapping into the persistence shape. The
// scraper path shares the manual path's validation contract, and status is
// always pending regardless of anything the model produced.
func assemble(fields map[string]any) (application.CreateFields, error) {
	amount, err := amountOf(fields["amount"])
	if err != nil {
		return application.CreateFields{}, err
	}
	payload := application.CreatePayload{
		CompanyName: stringOf(fields["companyName"]),
		Email:       stringOf(fields["email"]),
		Amount:      amount,
	}
	if notes := stringOf(fields["notes"]); notes != "" {
		payload.Notes = &notes
	}
	return application.ValidateCreate(payload)
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func amountOf(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, apperr.Validation("extracted data is incomplete",
				[]string{"amount must be a positive number"})
		}
		return f, nil
	default:
		return 0, apperr.Validation("extracted data is incomplete",
			[]string{"amount must be a positive number"})
	}
}

// archivePage stores the raw extraction input. Best effort: a failed
// archive write never fails the request.
func (s *Service) archivePage(ctx context.Context, appID int64, page crawl.Page) {
	if s.archive == nil {
		return
	}
	key := fmt.Sprintf("%s/%d.txt", s.archivePrefix, appID)
	uri, err := s.archive.Save(ctx, key, "text/plain; charset=utf-8", []byte(page.Text))
	if err != nil {
		s.logger.Warn("archive write failed", zap.String("key", key), zap.Error(err))
		return
	}
	s.logger.Debug("scrape archived", zap.String("uri", uri))
}

// publishCreated emits the lifecycle event. Best effort, same as archiving.
func (s *Service) publishCreated(ctx context.Context, app application.Application, sourceURL string) {
	if s.pub == nil {
		return
	}
	event := publisher.ApplicationCreated{
		ApplicationID: app.ID,
		CompanyName:   app.CompanyName,
		Source:        "scraper",
		SourceURL:     sourceURL,
		CreatedAt:     app.CreatedAt,
	}
	if _, err := s.pub.Publish(ctx, s.topic, event); err != nil {
		s.logger.Warn("application event publish failed", zap.Error(err))
	}
}
