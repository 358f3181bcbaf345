package batch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, url string) (*FetchResult, error)
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(ctx, url)
	}
	return &FetchResult{URL: url, Content: "content for " + url, StatusCode: 200}, nil
}

func (s *stubFetcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubExtractor struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, page *FetchResult, schema ExtractionSchema) ([]ExtractedRecord, error)
}

func (s *stubExtractor) Extract(ctx context.Context, page *FetchResult, schema ExtractionSchema) ([]ExtractedRecord, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(ctx, page, schema)
	}
	return []ExtractedRecord{fixedRecord(page.URL)}, nil
}

func (s *stubExtractor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fixedRecord(url string) ExtractedRecord {
	return ExtractedRecord{
		Fields:      map[string]any{"product_name": "HomeCare Plus", "price_monthly": "£24.00"},
		SourceURL:   url,
		ExtractedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func testSchema() ExtractionSchema {
	return ExtractionSchema{
		Name: "test",
		Fields: []SchemaField{
			{Name: "product_name"},
			{Name: "price_monthly"},
		},
	}
}

func testEntries(n int) []UrlEntry {
	entries := make([]UrlEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, UrlEntry{Raw: fmt.Sprintf("https://example.com/plans/%d", i)})
	}
	return entries
}

func newTestRunner(f Fetcher, e Extractor, opts Options) *Runner {
	if opts.FetchTimeout == 0 {
		opts.FetchTimeout = 2 * time.Second
	}
	if opts.ExtractTimeout == 0 {
		opts.ExtractTimeout = 2 * time.Second
	}
	return NewRunner(f, e, opts)
}

func TestRunCardinalityAndOrder(t *testing.T) {
	for _, n := range []int{0, 1, 7} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			fetch := &stubFetcher{}
			extract := &stubExtractor{}
			r := newTestRunner(fetch, extract, Options{Concurrency: 4})

			entries := testEntries(n)
			result, err := r.Run(context.Background(), entries, testSchema())
			require.NoError(t, err)
			require.Len(t, result, n)
			for i, o := range result {
				assert.Equal(t, i, o.Index)
				assert.Equal(t, entries[i], o.Entry)
				assert.True(t, o.OK())
			}
		})
	}
}

func TestRunIsolatesItemFailure(t *testing.T) {
	fetch := &stubFetcher{fn: func(ctx context.Context, url string) (*FetchResult, error) {
		if strings.HasSuffix(url, "/2") {
			return nil, fmt.Errorf("connection refused")
		}
		return &FetchResult{URL: url, Content: "content for " + url}, nil
	}}
	extract := &stubExtractor{}
	r := newTestRunner(fetch, extract, Options{Concurrency: 3})

	result, err := r.Run(context.Background(), testEntries(5), testSchema())
	require.NoError(t, err)
	require.Len(t, result, 5)
	for i, o := range result {
		if i == 2 {
			require.False(t, o.OK())
			assert.Equal(t, ErrKindFetch, o.Err.Kind)
			assert.Contains(t, o.Err.Message, "connection refused")
			continue
		}
		assert.True(t, o.OK(), "item %d should succeed", i)
	}
}

func TestRunMissingFieldIsSuccess(t *testing.T) {
	extract := &stubExtractor{fn: func(ctx context.Context, page *FetchResult, schema ExtractionSchema) ([]ExtractedRecord, error) {
		return []ExtractedRecord{{
			Fields:      map[string]any{"product_name": "Basic Cover"},
			SourceURL:   "https://example.com/plans/0",
			ExtractedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		}}, nil
	}}
	r := newTestRunner(&stubFetcher{}, extract, Options{})

	result, err := r.Run(context.Background(), testEntries(1), testSchema())
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.True(t, result[0].OK())
	rec := result[0].Records[0]
	assert.Equal(t, "Basic Cover", rec.String("product_name"))
	_, present := rec.Fields["price_monthly"]
	assert.False(t, present)
}

func TestRunEmptySchemaFailsFast(t *testing.T) {
	fetch := &stubFetcher{}
	extract := &stubExtractor{}
	r := newTestRunner(fetch, extract, Options{Concurrency: 2})

	result, err := r.Run(context.Background(), testEntries(3), ExtractionSchema{})
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Nil(t, result)
	assert.Zero(t, fetch.callCount())
	assert.Zero(t, extract.callCount())
}

func TestRunDeterministicAcrossRuns(t *testing.T) {
	entries := testEntries(6)
	run := func() BatchResult {
		r := newTestRunner(&stubFetcher{}, &stubExtractor{}, Options{Concurrency: 4})
		result, err := r.Run(context.Background(), entries, testSchema())
		require.NoError(t, err)
		return result
	}
	assert.Equal(t, run(), run())
}

func TestRunCancellationPreservesPartial(t *testing.T) {
	thirdStarted := make(chan struct{})
	fetch := &stubFetcher{fn: func(ctx context.Context, url string) (*FetchResult, error) {
		if strings.HasSuffix(url, "/2") {
			close(thirdStarted)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &FetchResult{URL: url, Content: "content for " + url}, nil
	}}
	r := newTestRunner(fetch, &stubExtractor{}, Options{Concurrency: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-thirdStarted
		cancel()
	}()

	type runReturn struct {
		result BatchResult
		err    error
	}
	done := make(chan runReturn, 1)
	go func() {
		result, err := r.Run(ctx, testEntries(5), testSchema())
		done <- runReturn{result, err}
	}()

	var ret runReturn
	select {
	case ret = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}

	require.ErrorIs(t, ret.err, context.Canceled)
	require.GreaterOrEqual(t, len(ret.result), 2)
	require.LessOrEqual(t, len(ret.result), 3)

	// The two completed items sit at their correct positions; nothing past the
	// in-flight item was started.
	assert.Equal(t, 0, ret.result[0].Index)
	assert.True(t, ret.result[0].OK())
	assert.Equal(t, 1, ret.result[1].Index)
	assert.True(t, ret.result[1].OK())
	for _, o := range ret.result {
		assert.LessOrEqual(t, o.Index, 2)
	}
}

func TestRunTimeoutBecomesTimeoutError(t *testing.T) {
	fetch := &stubFetcher{fn: func(ctx context.Context, url string) (*FetchResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	r := newTestRunner(fetch, &stubExtractor{}, Options{FetchTimeout: 40 * time.Millisecond})

	result, err := r.Run(context.Background(), testEntries(2), testSchema())
	require.NoError(t, err)
	require.Len(t, result, 2)
	for _, o := range result {
		require.False(t, o.OK())
		assert.Equal(t, ErrKindTimeout, o.Err.Kind)
	}
}

func TestRunZeroRecordsIsExtractionError(t *testing.T) {
	extract := &stubExtractor{fn: func(ctx context.Context, page *FetchResult, schema ExtractionSchema) ([]ExtractedRecord, error) {
		return nil, nil
	}}
	r := newTestRunner(&stubFetcher{}, extract, Options{})

	result, err := r.Run(context.Background(), testEntries(1), testSchema())
	require.NoError(t, err)
	require.False(t, result[0].OK())
	assert.Equal(t, ErrKindExtraction, result[0].Err.Kind)
}

func TestRunMalformedEntrySkipsFetch(t *testing.T) {
	fetch := &stubFetcher{}
	r := newTestRunner(fetch, &stubExtractor{}, Options{})

	entries := []UrlEntry{
		{Raw: "https://example.com/plans/0"},
		{Raw: "not a url"},
		{Raw: "ftp://example.com/file"},
	}
	result, err := r.Run(context.Background(), entries, testSchema())
	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.True(t, result[0].OK())
	require.False(t, result[1].OK())
	assert.Equal(t, ErrKindInput, result[1].Err.Kind)
	require.False(t, result[2].OK())
	assert.Equal(t, ErrKindInput, result[2].Err.Kind)
	assert.Equal(t, 1, fetch.callCount())
}

func TestRunProgressEvents(t *testing.T) {
	var mu sync.Mutex
	var events []Progress
	r := newTestRunner(&stubFetcher{}, &stubExtractor{}, Options{
		Concurrency: 1,
		OnProgress: func(p Progress) {
			mu.Lock()
			events = append(events, p)
			mu.Unlock()
		},
	})

	result, err := r.Run(context.Background(), testEntries(4), testSchema())
	require.NoError(t, err)
	require.Len(t, result, 4)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 4)
	for i, ev := range events {
		assert.Equal(t, i, ev.Index)
		assert.Equal(t, i+1, ev.Completed)
		assert.Equal(t, 4, ev.Total)
		assert.True(t, ev.Outcome.OK())
	}
}

func TestRunDuplicatesProcessedIndependently(t *testing.T) {
	fetch := &stubFetcher{}
	r := newTestRunner(fetch, &stubExtractor{}, Options{Concurrency: 2})

	entries := []UrlEntry{
		{Raw: "https://example.com/plans/0"},
		{Raw: "https://example.com/plans/0"},
	}
	result, err := r.Run(context.Background(), entries, testSchema())
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.True(t, result[0].OK())
	assert.True(t, result[1].OK())
	assert.Equal(t, 2, fetch.callCount())
}

func TestSummarize(t *testing.T) {
	result := BatchResult{
		{Index: 0, Records: []ExtractedRecord{fixedRecord("a"), fixedRecord("b")}},
		{Index: 1, Err: &ItemError{Kind: ErrKindFetch, Message: "boom"}},
		{Index: 2, Err: &ItemError{Kind: ErrKindTimeout, Message: "deadline"}},
	}
	s := result.Summarize()
	assert.Equal(t, 3, s.TotalURLs)
	assert.Equal(t, 1, s.Succeeded)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 2, s.Products)
	assert.Equal(t, 1, s.FailuresByKind["fetch_error"])
	assert.Equal(t, 1, s.FailuresByKind["timeout_error"])
}
