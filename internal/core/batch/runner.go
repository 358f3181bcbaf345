package batch

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"prodintel/internal/logger"
)

// Fetcher retrieves one page and returns LLM-ready content. Implementations
// may retry internally; the pipeline sees exactly one attempt per URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}

// Extractor turns a fetched page into structured records for the given
// schema. Absent fields are fine; returning zero records is a failure.
type Extractor interface {
	Extract(ctx context.Context, page *FetchResult, schema ExtractionSchema) ([]ExtractedRecord, error)
}

// Options tune one runner. OnProgress, when set, receives one event per
// completed item from a dedicated goroutine; a slow observer drops events
// rather than stalling workers.
type Options struct {
	Concurrency    int
	FetchTimeout   time.Duration
	ExtractTimeout time.Duration
	ItemDelay      time.Duration
	OnProgress     func(Progress)
}

// Runner drives Fetcher and Extractor over an ordered URL list with a bounded
// worker pool, writing each outcome into its input-index slot.
type Runner struct {
	fetch   Fetcher
	extract Extractor
	opts    Options
	log     *logger.Logger
}

func NewRunner(fetch Fetcher, extract Extractor, opts Options) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.ExtractTimeout <= 0 {
		opts.ExtractTimeout = 30 * time.Second
	}
	return &Runner{fetch: fetch, extract: extract, opts: opts, log: logger.New("BatchRunner")}
}

// Run processes every entry and returns one outcome per entry in input order.
// Per-item failures are data, never control flow; the only error returned for
// a valid schema is the context's own on cancellation, alongside the partial
// result of everything that completed.
func (r *Runner) Run(ctx context.Context, entries []UrlEntry, schema ExtractionSchema) (BatchResult, error) {
	if err := schema.Validate(); err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}
	if len(entries) == 0 {
		return BatchResult{}, nil
	}

	total := len(entries)
	slots := make([]ItemOutcome, total)
	filled := make([]bool, total)
	completed := 0
	var mu sync.Mutex

	var events chan Progress
	var drained chan struct{}
	if r.opts.OnProgress != nil {
		events = make(chan Progress, 2*total+8)
		drained = make(chan struct{})
		go func() {
			defer close(drained)
			for ev := range events {
				r.opts.OnProgress(ev)
			}
		}()
	}

	record := func(idx int, o ItemOutcome) {
		mu.Lock()
		slots[idx] = o
		filled[idx] = true
		completed++
		done := completed
		mu.Unlock()
		if events != nil {
			select {
			case events <- Progress{Index: idx, Completed: done, Total: total, Outcome: o}:
			default:
			}
		}
	}

	type item struct {
		idx   int
		entry UrlEntry
	}
	// Unbuffered: an entry is only considered dispatched once a worker holds it,
	// so cancellation cleanly stops everything not yet handed off.
	jobs := make(chan item)

	workers := r.opts.Concurrency
	if workers > total {
		workers = total
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range jobs {
				if ctx.Err() != nil {
					continue
				}
				record(it.idx, r.processItem(ctx, it.entry, it.idx, schema))
				if r.opts.ItemDelay > 0 {
					select {
					case <-time.After(r.opts.ItemDelay):
					case <-ctx.Done():
					}
				}
			}
		}()
	}

	r.log.LogInfof("batch started: %d urls, %d workers", total, workers)

dispatch:
	for i, e := range entries {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- item{idx: i, entry: e}:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()
	if events != nil {
		close(events)
		<-drained
	}

	if err := ctx.Err(); err != nil {
		partial := make(BatchResult, 0, completed)
		for i := range slots {
			if filled[i] {
				partial = append(partial, slots[i])
			}
		}
		r.log.LogWarnf("batch cancelled after %d/%d items", len(partial), total)
		return partial, err
	}

	s := BatchResult(slots).Summarize()
	r.log.LogSuccessf("batch finished: %d ok, %d failed, %d products", s.Succeeded, s.Failed, s.Products)
	return BatchResult(slots), nil
}

func (r *Runner) processItem(ctx context.Context, entry UrlEntry, idx int, schema ExtractionSchema) ItemOutcome {
	out := ItemOutcome{Index: idx, Entry: entry}

	if err := ValidateURL(entry.Raw); err != nil {
		out.Err = newItemError(ErrKindInput, "%v", err)
		r.log.LogWarnf("item %d rejected: %v", idx, err)
		return out
	}

	fctx, cancelFetch := context.WithTimeout(ctx, r.opts.FetchTimeout)
	page, err := r.fetch.Fetch(fctx, entry.Raw)
	cancelFetch()
	if err != nil {
		out.Err = classify(err, ErrKindFetch)
		r.log.LogWarnf("item %d fetch failed (%s): %s", idx, entry.Raw, out.Err.Message)
		return out
	}

	ectx, cancelExtract := context.WithTimeout(ctx, r.opts.ExtractTimeout)
	records, err := r.extract.Extract(ectx, page, schema)
	cancelExtract()
	if err != nil {
		out.Err = classify(err, ErrKindExtraction)
		r.log.LogWarnf("item %d extraction failed (%s): %s", idx, entry.Raw, out.Err.Message)
		return out
	}
	if len(records) == 0 {
		out.Err = newItemError(ErrKindExtraction, "no products recognized on page")
		return out
	}

	now := time.Now().UTC()
	for i := range records {
		if records[i].SourceURL == "" {
			records[i].SourceURL = entry.Raw
		}
		if records[i].ExtractedAt.IsZero() {
			records[i].ExtractedAt = now
		}
	}
	out.Records = records
	r.log.LogDebugf("item %d ok: %d records from %s", idx, len(records), entry.Raw)
	return out
}

// classify maps a collaborator error to the item's failure kind, promoting
// deadline expiry to timeout_error regardless of stage.
func classify(err error, stage ErrorKind) *ItemError {
	if errors.Is(err, context.DeadlineExceeded) {
		return newItemError(ErrKindTimeout, "%v", err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return newItemError(ErrKindTimeout, "%v", err)
	}
	return newItemError(stage, "%v", err)
}
