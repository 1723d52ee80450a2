package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ryanm101/gamemeta/internal/importer"
	"github.com/ryanm101/gamemeta/internal/match"
	"github.com/ryanm101/gamemeta/internal/merge"
	"github.com/ryanm101/gamemeta/internal/metadata"
	"github.com/ryanm101/gamemeta/internal/store"
	"github.com/ryanm101/gamemeta/internal/walk"
)

var importFlags struct {
	source      string
	policy      string
	workers     int
	dryRun      bool
	yes         bool
	interactive bool
	metricsAddr string
	ids         []string
	slots       []string
	value       string
	maxDepth    int
	limit       int
}

func init() {
	for _, c := range []*cobra.Command{importBarcodeCmd, importNameCmd, importPropertyCmd, importCategoryCmd} {
		f := c.Flags()
		f.StringVar(&importFlags.source, "source", "", "Metadata source ("+strings.Join(metadata.Adapters(), ", ")+")")
		f.StringVar(&importFlags.policy, "policy", "", "Merge policy: append or replace (default from config)")
		f.IntVar(&importFlags.workers, "workers", 0, "Parallel workers (default from config)")
		f.BoolVar(&importFlags.dryRun, "dry-run", false, "Compute changes without saving")
		f.StringVar(&importFlags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while importing")
		f.StringSliceVar(&importFlags.ids, "id", nil, "Only import these record ids (repeatable)")
		_ = c.MarkFlagRequired("source")
	}
	for _, c := range []*cobra.Command{importNameCmd, importPropertyCmd} {
		c.Flags().BoolVarP(&importFlags.yes, "yes", "y", false, "Accept the top candidate when no exact match is found")
		c.Flags().BoolVarP(&importFlags.interactive, "interactive", "i", false, "Prompt for a candidate when no exact match is found")
	}
	importPropertyCmd.Flags().StringSliceVar(&importFlags.slots, "slot", nil, "Property slot to import (repeatable; default all)")
	importCategoryCmd.Flags().StringSliceVar(&importFlags.slots, "slot", nil, "Property slot that receives the value")
	importCategoryCmd.Flags().StringVar(&importFlags.value, "value", "", "Property value given to matching records")
	importCategoryCmd.Flags().IntVar(&importFlags.maxDepth, "max-depth", 0, "Subcategory depth limit (0 = unlimited)")
	_ = importCategoryCmd.MarkFlagRequired("slot")
	_ = importCategoryCmd.MarkFlagRequired("value")
	importHistoryCmd.Flags().IntVar(&importFlags.limit, "limit", 20, "Number of runs to show")

	importCmd.AddCommand(importBarcodeCmd, importNameCmd, importPropertyCmd, importCategoryCmd, importHistoryCmd)
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk import metadata into stored records.",
}

var importBarcodeCmd = &cobra.Command{
	Use:   "barcode",
	Short: "Look records up by barcode and merge the first answer.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, "barcode", func(ctx context.Context, im *importer.Importer, _ metadata.Adapter, records []*metadata.Record) (importer.Summary, error) {
			return im.ImportBarcodes(ctx, records), nil
		})
	},
}

var importNameCmd = &cobra.Command{
	Use:   "name",
	Short: "Search records by title and merge the matched game.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, "name", func(ctx context.Context, im *importer.Importer, _ metadata.Adapter, records []*metadata.Record) (importer.Summary, error) {
			return im.ImportByName(ctx, records), nil
		})
	},
}

var importPropertyCmd = &cobra.Command{
	Use:   "property",
	Short: "Search records by title and merge only property slots.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		slots, err := parseSlots(importFlags.slots)
		if err != nil {
			return err
		}
		return runImport(cmd, "property", func(ctx context.Context, im *importer.Importer, _ metadata.Adapter, records []*metadata.Record) (importer.Summary, error) {
			return im.ImportProperty(ctx, records, slots), nil
		})
	},
}

var importCategoryCmd = &cobra.Command{
	Use:   "category <root>",
	Short: "Tag records found under a category tree with a property value.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slots, err := parseSlots(importFlags.slots)
		if err != nil {
			return err
		}
		if len(slots) != 1 {
			return fmt.Errorf("category import takes exactly one --slot")
		}
		return runImport(cmd, "category", func(ctx context.Context, im *importer.Importer, adapter metadata.Adapter, records []*metadata.Record) (importer.Summary, error) {
			source, ok := adapter.(metadata.CategorySource)
			if !ok {
				return importer.Summary{}, fmt.Errorf("source %s has no category listings", adapter.Name())
			}
			return im.ImportCategory(ctx, source, args[0], records, slots[0], importFlags.value)
		})
	},
}

var importHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent import runs.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = st.Close() }()

		runs, err := st.ListImportRuns(ctx, importFlags.limit)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			workflow := r.Workflow
			if r.DryRun {
				workflow += " (dry run)"
			}
			rows = append(rows, []string{
				r.StartedAt.Local().Format(time.DateTime),
				workflow,
				r.Source,
				r.Policy,
				strconv.Itoa(r.Succeeded),
				strconv.Itoa(r.Skipped),
				strconv.Itoa(r.Failed),
				r.Duration.Round(time.Millisecond).String(),
			})
		}
		PrintTable([]string{"Started", "Workflow", "Source", "Policy", "Succeeded", "Skipped", "Failed", "Duration"}, rows)
		return nil
	},
}

type workflowFunc func(ctx context.Context, im *importer.Importer, adapter metadata.Adapter, records []*metadata.Record) (importer.Summary, error)

// runImport wires the store, adapter, chooser and progress bar around one
// workflow and records the run in the import history.
func runImport(cmd *cobra.Command, workflow string, run workflowFunc) error {
	ctx := cmd.Context()

	policyName := importFlags.policy
	if policyName == "" {
		policyName = cfg.GetPolicy()
	}
	policy, err := merge.ParsePolicy(policyName)
	if err != nil {
		return err
	}
	workers := importFlags.workers
	if workers <= 0 {
		workers = cfg.GetWorkers()
	}

	st, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = st.Close() }()

	adapter, err := openSource(importFlags.source)
	if err != nil {
		return err
	}

	records, err := selectRecords(ctx, st, importFlags.ids)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		PrintInfo("No records to import.\n")
		return nil
	}

	if importFlags.metricsAddr != "" {
		stop, err := serveMetrics(importFlags.metricsAddr)
		if err != nil {
			return fmt.Errorf("failed to serve metrics: %w", err)
		}
		defer stop()
	}

	var chooser importer.Chooser
	switch {
	case importFlags.yes:
		chooser = importer.TopChooser
	case importFlags.interactive:
		chooser = newPromptChooser()
	}

	var bar *progressbar.ProgressBar
	if !outputCfg.Quiet && !outputCfg.JSON && !importFlags.interactive {
		bar = progressbar.Default(int64(len(records)), "Importing")
	}

	im := importer.New(adapter, st, st, chooser, importer.Config{
		Workers:             workers,
		Policy:              policy,
		DryRun:              importFlags.dryRun,
		SimilarityThreshold: cfg.GetSimilarityThreshold(),
		AutoAcceptExact:     true,
		Limits:              walk.Limits{MaxPages: cfg.GetMaxPages(), MaxResults: cfg.GetMaxResults()},
		MaxDepth:            importFlags.maxDepth,
		OnResult: func(r importer.Result) {
			if bar != nil {
				bar.Describe(truncateString(r.Name, 30))
				_ = bar.Add(1)
			}
		},
	})

	started := time.Now()
	summary, err := run(ctx, im, adapter, records)
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return err
	}

	// The run is recorded even when the import was interrupted.
	_, err = st.RecordImportRun(context.WithoutCancel(ctx), store.ImportRun{
		Workflow:  workflow,
		Source:    adapter.Name(),
		Policy:    policy.String(),
		DryRun:    summary.DryRun,
		Succeeded: summary.Succeeded,
		Skipped:   summary.Skipped,
		Failed:    summary.Failed,
		Duration:  summary.Duration,
		StartedAt: started,
	})
	if err != nil {
		PrintError("Warning: failed to record import run: %v\n", err)
	}

	printSummary(summary)
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d records failed", summary.Failed, summary.Total())
	}
	return nil
}

// selectRecords loads every record, or only those listed in ids.
func selectRecords(ctx context.Context, st *store.Store, ids []string) ([]*metadata.Record, error) {
	if len(ids) == 0 {
		return st.ListRecords(ctx)
	}
	records := make([]*metadata.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := st.GetRecord(ctx, id)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseSlots(names []string) ([]metadata.Slot, error) {
	var slots []metadata.Slot
	for _, n := range names {
		slot, err := metadata.ParseSlot(n)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func printSummary(summary importer.Summary) {
	if outputCfg.JSON {
		type jsonResult struct {
			RecordID string   `json:"record_id"`
			Name     string   `json:"name"`
			Status   string   `json:"status"`
			Reason   string   `json:"reason,omitempty"`
			Error    string   `json:"error,omitempty"`
			Match    string   `json:"match,omitempty"`
			Changed  []string `json:"changed,omitempty"`
		}
		out := struct {
			Workflow  string       `json:"workflow"`
			DryRun    bool         `json:"dry_run"`
			Succeeded int          `json:"succeeded"`
			Skipped   int          `json:"skipped"`
			Failed    int          `json:"failed"`
			Duration  string       `json:"duration"`
			Results   []jsonResult `json:"results"`
		}{
			Workflow:  summary.Workflow,
			DryRun:    summary.DryRun,
			Succeeded: summary.Succeeded,
			Skipped:   summary.Skipped,
			Failed:    summary.Failed,
			Duration:  summary.Duration.String(),
		}
		for _, r := range summary.Results {
			jr := jsonResult{
				RecordID: r.RecordID,
				Name:     r.Name,
				Status:   r.Status.String(),
				Reason:   r.Reason,
				Match:    r.Match,
				Changed:  r.Changes.Fields(),
			}
			if r.Err != nil {
				jr.Error = r.Err.Error()
			}
			out.Results = append(out.Results, jr)
		}
		PrintResult(out)
		return
	}

	if !outputCfg.Quiet {
		rows := make([][]string, 0, len(summary.Results))
		for _, r := range summary.Results {
			detail := r.Reason
			if r.Err != nil {
				detail = r.Err.Error()
			}
			if r.Status == importer.StatusSucceeded {
				detail = strings.Join(r.Changes.Fields(), ", ")
			}
			rows = append(rows, []string{
				truncateString(r.Name, 40),
				r.Status.String(),
				truncateString(r.Match, 40),
				truncateString(detail, 60),
			})
		}
		PrintTable([]string{"Record", "Status", "Match", "Detail"}, rows)
	}

	prefix := ""
	if summary.DryRun {
		prefix = "[dry run] "
	}
	fmt.Printf("%sDone: %d succeeded, %d skipped, %d failed in %s.\n",
		prefix, summary.Succeeded, summary.Skipped, summary.Failed, summary.Duration.Round(time.Millisecond))
}

// promptChooser asks on stdin which candidate to accept.
type promptChooser struct {
	in *bufio.Reader
}

func newPromptChooser() *promptChooser {
	return &promptChooser{in: bufio.NewReader(os.Stdin)}
}

func (p *promptChooser) Choose(ctx context.Context, rec *metadata.Record, candidates []match.Ranked) (*match.Ranked, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	fmt.Printf("\n%s\n", rec.Name)
	rows := make([][]string, 0, len(candidates))
	for i, c := range candidates {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			c.Result.Name,
			c.Tier.String(),
			strconv.FormatFloat(c.Score, 'f', 2, 64),
			strings.Join(c.Result.Platforms, ", "),
			c.Result.ReleaseDate.String(),
		})
	}
	PrintTable([]string{"#", "Name", "Tier", "Score", "Platforms", "Released"}, rows)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fmt.Printf("Pick 1-%d, or 0 to skip: ", len(candidates))
		line, err := p.in.ReadString('\n')
		if err != nil {
			return nil, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || n < 0 || n > len(candidates) {
			continue
		}
		if n == 0 {
			return nil, nil
		}
		return &candidates[n-1], nil
	}
}
