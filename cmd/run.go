package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"prodintel/internal/config"
	"prodintel/internal/core/analyze"
	"prodintel/internal/core/batch"
	"prodintel/internal/core/export"
	"prodintel/internal/core/extract"
	"prodintel/internal/core/fetch"
	"prodintel/internal/core/intel"
	"prodintel/internal/platform/llm"
)

var (
	runInput       string
	runURLs        []string
	runOut         string
	runOutcomesOut string
	runReportOut   string
	runSummary     bool
	runBaseline    string
	runSchemaFile  string
	runConcurrency int
	runDelay       int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one extraction batch from a local URL list",
	Long: `run fetches and extracts every URL in the given list, then writes the
deduplicated product table as CSV. It talks only to the target sites
and the model; no redis or storage is required.`,
	RunE: runBatchCmd,
}

func init() {
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "URL list file: .csv with url[,competitor] columns, or plain text with one URL per line")
	runCmd.Flags().StringArrayVar(&runURLs, "url", nil, "add one URL (repeatable)")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "products.csv", "product table output path")
	runCmd.Flags().StringVar(&runOutcomesOut, "outcomes", "", "also write the per-URL outcome table to this path")
	runCmd.Flags().StringVar(&runReportOut, "report", "", "generate an analysis report and write it to this path")
	runCmd.Flags().BoolVar(&runSummary, "summary", false, "write the short executive summary instead of the full report")
	runCmd.Flags().StringVar(&runBaseline, "baseline", "", "baseline provider for the report (default BASELINE_PROVIDER)")
	runCmd.Flags().StringVar(&runSchemaFile, "schema", "", "extraction schema YAML (default: built-in product schema)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 1, "parallel workers")
	runCmd.Flags().IntVar(&runDelay, "delay", 2, "seconds to pause between items, politeness for sequential runs")
}

func runBatchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireLLM(); err != nil {
		return err
	}

	entries, err := gatherEntries()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no URLs given: use --input or --url")
	}
	if len(entries) > cfg.MaxURLsPerBatch {
		return fmt.Errorf("%d URLs exceed the limit of %d", len(entries), cfg.MaxURLsPerBatch)
	}

	schema, err := resolveRunSchema(cfg)
	if err != nil {
		return err
	}

	llmSvc, err := llm.NewService(llm.Config{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.GeminiAPIKey,
		BaseURL:  cfg.LLMBaseURL,
		Model:    cfg.LLMModel,
	})
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}

	// No redis here, so the fetch cache is simply off
	fetchSvc := fetch.New(nil, fetch.Options{
		MaxRetries:     cfg.FetchMaxRetries,
		RenderFallback: cfg.RenderFallback,
	})

	runner := batch.NewRunner(fetchSvc, extract.New(llmSvc), batch.Options{
		Concurrency:    runConcurrency,
		FetchTimeout:   cfg.FetchTimeout,
		ExtractTimeout: cfg.ExtractTimeout,
		ItemDelay:      time.Duration(runDelay) * time.Second,
		OnProgress:     printProgress,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("extracting %d URLs (concurrency %d)\n", len(entries), runConcurrency)
	result, runErr := runner.Run(ctx, entries, schema)
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}

	summary := result.Summarize()
	fmt.Printf("done: %d/%d succeeded, %d products\n", summary.Succeeded, summary.TotalURLs, summary.Products)
	if ctx.Err() != nil {
		fmt.Printf("interrupted: keeping %d completed outcomes\n", len(result))
	}

	products, stats := intel.Dedupe(intel.Clean(result))
	if stats.DuplicatesRemoved > 0 {
		fmt.Printf("removed %d duplicate products\n", stats.DuplicatesRemoved)
	}
	if prices := intel.PriceRangeOf(products); prices.Monthly.Count > 0 {
		fmt.Printf("monthly prices: min %.2f avg %.2f max %.2f (%d priced)\n",
			prices.Monthly.Min, prices.Monthly.Avg, prices.Monthly.Max, prices.Monthly.Count)
	}
	if err := writeProductsFile(runOut, products); err != nil {
		return err
	}
	fmt.Println("products written to", runOut)

	if runOutcomesOut != "" {
		if err := writeOutcomesFile(runOutcomesOut, result, schema); err != nil {
			return err
		}
		fmt.Println("outcomes written to", runOutcomesOut)
	}

	// An interrupted run skips the report; partial data makes a misleading one
	if runReportOut != "" && ctx.Err() == nil {
		baseline := runBaseline
		if baseline == "" {
			baseline = cfg.BaselineProvider
		}
		if err := writeReport(llmSvc, products, baseline); err != nil {
			return err
		}
	}
	return nil
}

func gatherEntries() ([]batch.UrlEntry, error) {
	var entries []batch.UrlEntry
	if runInput != "" {
		data, err := os.ReadFile(runInput)
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(filepath.Ext(runInput), ".csv") {
			entries, err = batch.ParseURLCSV(bytes.NewReader(data))
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", runInput, err)
			}
		} else {
			entries = batch.ParseURLText(string(data))
		}
	}
	for _, u := range runURLs {
		entries = append(entries, batch.UrlEntry{Raw: u})
	}
	return batch.Dedupe(entries), nil
}

func resolveRunSchema(cfg config.Config) (batch.ExtractionSchema, error) {
	path := runSchemaFile
	if path == "" {
		path = cfg.SchemaFile
	}
	if path != "" {
		return batch.LoadSchemaFile(path)
	}
	return batch.DefaultSchema(), nil
}

func printProgress(p batch.Progress) {
	o := p.Outcome
	if o.OK() {
		fmt.Printf("[%d/%d] ok %s (%d records)\n", p.Completed, p.Total, o.Entry.Raw, len(o.Records))
		return
	}
	fmt.Printf("[%d/%d] %s %s: %s\n", p.Completed, p.Total, o.Err.Kind, o.Entry.Raw, o.Err.Message)
}

func writeProductsFile(path string, products []intel.Product) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return export.WriteProducts(f, products)
}

func writeOutcomesFile(path string, result batch.BatchResult, schema batch.ExtractionSchema) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return export.WriteOutcomes(f, result, schema)
}

func writeReport(gen *llm.Service, products []intel.Product, baseline string) error {
	svc := analyze.New(gen)

	var (
		res *analyze.ReportResult
		err error
	)
	if runSummary {
		res, err = svc.ExecSummary(context.Background(), products, baseline)
	} else {
		res, err = svc.Report(context.Background(), products, baseline)
	}
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := os.WriteFile(runReportOut, []byte(res.Report), 0o644); err != nil {
		return err
	}
	fmt.Println("report written to", runReportOut)
	return nil
}
