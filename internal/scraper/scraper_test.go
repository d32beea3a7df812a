package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/appvine/apptrack/internal/apperr"
	"github.com/appvine/apptrack/internal/application"
	"github.com/appvine/apptrack/internal/archive"
	"github.com/appvine/apptrack/internal/crawl"
	"github.com/appvine/apptrack/internal/extract"
	publishermemory "github.com/appvine/apptrack/internal/publisher/memory"
)

type fakeCrawler struct {
	pages  []crawl.Page
	err    error
	target string
	max    int
}

func (f *fakeCrawler) Run(_ context.Context, target string, maxRequests int) ([]crawl.Page, error) {
	f.target = target
	f.max = maxRequests
	return f.pages, f.err
}

type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	return f.response, f.err
}

type fakeStore struct {
	created []application.CreateFields
	err     error
	nextID  int64
}

func (f *fakeStore) Create(_ context.Context, fields application.CreateFields) (application.Application, error) {
	if f.err != nil {
		return application.Application{}, f.err
	}
	f.created = append(f.created, fields)
	f.nextID++
	now := time.Unix(1700000000, 0).UTC()
	return application.Application{
		ID:          f.nextID,
		CompanyName: fields.CompanyName,
		Email:       fields.Email,
		Status:      fields.Status,
		Amount:      fields.Amount,
		Notes:       fields.Notes,
		Date:        now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func newService(crawler Crawler, gen extract.Generator, store Store) (*Service, *archive.Memory, *publishermemory.Publisher) {
	arc := archive.NewMemory()
	pub := publishermemory.New()
	svc := New(Config{
		Crawler:   crawler,
		Extractor: extract.New(gen),
		Store:     store,
		Archive:   arc,
		Publisher: pub,
		Topic:     "applications",
	}, zap.NewNop())
	return svc, arc, pub
}

const goodResponse = `{"companyName":"Acme Corp","email":"jobs@acme.example","amount":85000,"notes":"Backend role","status":"approved"}`

func TestScrapePersistsExtractedApplication(t *testing.T) {
	t.Parallel()

	crawler := &fakeCrawler{pages: []crawl.Page{
		{URL: "https://acme.example/careers", Text: "We are hiring"},
		{URL: "https://acme.example/about", Text: "About us"},
	}}
	store := &fakeStore{}
	svc, arc, pub := newService(crawler, &fakeGenerator{response: goodResponse}, store)

	res, err := svc.Scrape(context.Background(), "https://acme.example/careers", 5)
	require.NoError(t, err)

	require.Equal(t, "https://acme.example/careers", crawler.target)
	require.Equal(t, 5, crawler.max)
	require.Len(t, res.Pages, 2)
	require.Equal(t, "Acme Corp", res.Extracted["companyName"])
	require.Equal(t, int64(1), res.Application.ID)
	require.Equal(t, "85000.00", res.Application.Amount)

	// Status is always pending, even when the model hallucinated one.
	require.Equal(t, application.StatusPending, res.Application.Status)
	require.Len(t, store.created, 1)
	require.Equal(t, application.StatusPending, store.created[0].Status)

	// Raw page text is archived and the lifecycle event published.
	data, ok := arc.Get("scrapes/1.txt")
	require.True(t, ok)
	require.Equal(t, "We are hiring", string(data))
	require.Len(t, pub.Messages(), 1)
}

func TestScrapeRequiresURL(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(&fakeCrawler{}, &fakeGenerator{}, &fakeStore{})
	_, err := svc.Scrape(context.Background(), "", 0)
	require.Error(t, err)
	require.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}

func TestScrapeWithoutCrawlerIsConfigurationError(t *testing.T) {
	t.Parallel()

	svc := New(Config{
		Extractor: extract.New(&fakeGenerator{}),
		Store:     &fakeStore{},
	}, zap.NewNop())

	_, err := svc.Scrape(context.Background(), "https://example.com", 0)
	require.Error(t, err)
	require.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
}

func TestScrapeZeroPagesIsDefinedError(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	svc, _, _ := newService(&fakeCrawler{pages: []crawl.Page{}}, &fakeGenerator{response: goodResponse}, store)

	_, err := svc.Scrape(context.Background(), "https://example.com", 0)
	require.Error(t, err)
	require.Equal(t, apperr.KindParse, apperr.KindOf(err))
	require.Contains(t, err.Error(), "no content")
	require.Empty(t, store.created)
}

func TestScrapeNoJSONCreatesNothing(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	crawler := &fakeCrawler{pages: []crawl.Page{{Text: "hello"}}}
	svc, _, pub := newService(crawler, &fakeGenerator{response: "no structured data here"}, store)

	_, err := svc.Scrape(context.Background(), "https://example.com", 0)
	require.Error(t, err)
	require.Equal(t, apperr.KindParse, apperr.KindOf(err))
	require.Empty(t, store.created)
	require.Empty(t, pub.Messages())
}

func TestScrapeMissingAmountCreatesNothing(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	crawler := &fakeCrawler{pages: []crawl.Page{{Text: "hello"}}}
	resp := `{"companyName":"Acme","email":"a@b.example"}`
	svc, _, _ := newService(crawler, &fakeGenerator{response: resp}, store)

	_, err := svc.Scrape(context.Background(), "https://example.com", 0)
	require.Error(t, err)
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	require.Empty(t, store.created)
}

func TestScrapeInvalidExtractedEmailCreatesNothing(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	crawler := &fakeCrawler{pages: []crawl.Page{{Text: "hello"}}}
	resp := `{"companyName":"Acme","email":"not an email","amount":10}`
	svc, _, _ := newService(crawler, &fakeGenerator{response: resp}, store)

	_, err := svc.Scrape(context.Background(), "https://example.com", 0)
	require.Error(t, err)
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	require.Contains(t, apperr.DetailsOf(err), "email must be a valid email address")
	require.Empty(t, store.created)
}

func TestScrapeStringAmountIsCoerced(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	crawler := &fakeCrawler{pages: []crawl.Page{{Text: "hello"}}}
	resp := `{"companyName":"Acme","email":"a@b.example","amount":"1234.5"}`
	svc, _, _ := newService(crawler, &fakeGenerator{response: resp}, store)

	res, err := svc.Scrape(context.Background(), "https://example.com", 0)
	require.NoError(t, err)
	require.Equal(t, "1234.50", res.Application.Amount)
}

func TestScrapeCrawlerFailurePropagates(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	crawler := &fakeCrawler{err: apperr.External("crawl service returned status 502", 502, nil)}
	svc, _, _ := newService(crawler, &fakeGenerator{response: goodResponse}, store)

	_, err := svc.Scrape(context.Background(), "https://example.com", 0)
	require.Error(t, err)
	require.Equal(t, apperr.KindExternal, apperr.KindOf(err))
	require.Empty(t, store.created)
}

func TestScrapeStoreFailurePropagates(t *testing.T) {
	t.Parallel()

	store := &fakeStore{err: apperr.Storage("insert application", context.DeadlineExceeded)}
	crawler := &fakeCrawler{pages: []crawl.Page{{Text: "hello"}}}
	svc, _, pub := newService(crawler, &fakeGenerator{response: goodResponse}, store)

	_, err := svc.Scrape(context.Background(), "https://example.com", 0)
	require.Error(t, err)
	require.Equal(t, apperr.KindStorage, apperr.KindOf(err))
	require.Empty(t, pub.Messages())
}
