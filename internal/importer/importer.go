// Package importer runs the bulk fetch, match and merge workflows over many
// records with a bounded worker pool.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ryanm101/gamemeta/internal/logging"
	"github.com/ryanm101/gamemeta/internal/match"
	"github.com/ryanm101/gamemeta/internal/merge"
	"github.com/ryanm101/gamemeta/internal/metadata"
	"github.com/ryanm101/gamemeta/internal/metrics"
	"github.com/ryanm101/gamemeta/internal/tracing"
	"github.com/ryanm101/gamemeta/internal/walk"
)

// DefaultWorkers is the worker pool size when Config.Workers is unset.
const DefaultWorkers = 8

// Chooser picks a candidate when the match engine cannot decide. Returning
// nil skips the record.
type Chooser interface {
	Choose(ctx context.Context, record *metadata.Record, candidates []match.Ranked) (*match.Ranked, error)
}

// ChooserFunc adapts a function to Chooser.
type ChooserFunc func(ctx context.Context, record *metadata.Record, candidates []match.Ranked) (*match.Ranked, error)

func (f ChooserFunc) Choose(ctx context.Context, record *metadata.Record, candidates []match.Ranked) (*match.Ranked, error) {
	return f(ctx, record, candidates)
}

// TopChooser always picks the best ranked candidate.
var TopChooser = ChooserFunc(func(_ context.Context, _ *metadata.Record, candidates []match.Ranked) (*match.Ranked, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[0], nil
})

// Saver persists a record after a successful merge.
type Saver interface {
	SaveRecord(ctx context.Context, record *metadata.Record) error
}

// Config configures an Importer.
type Config struct {
	Workers             int
	Policy              merge.Policy
	DryRun              bool
	SimilarityThreshold float64
	AutoAcceptExact     bool
	Limits              walk.Limits
	// MaxDepth bounds category walks; zero is unlimited.
	MaxDepth int
	// OnResult is called once per record from a single goroutine.
	OnResult func(Result)
}

// Importer runs import workflows against one adapter.
type Importer struct {
	adapter metadata.Adapter
	ids     merge.IDResolver
	saver   Saver
	chooser Chooser
	engine  *match.Engine
	cfg     Config

	// Interactive choosers are not assumed to be safe for concurrent use.
	chooseMu sync.Mutex
}

// New creates an Importer. ids may be nil, in which case property slots are
// not imported. saver and chooser may be nil. In a dry run ids is only used
// through merge.ReadOnly.
func New(adapter metadata.Adapter, ids merge.IDResolver, saver Saver, chooser Chooser, cfg Config) *Importer {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.DryRun && ids != nil {
		ids = merge.ReadOnly(ids)
	}
	return &Importer{
		adapter: adapter,
		ids:     ids,
		saver:   saver,
		chooser: chooser,
		engine: match.New(match.Options{
			SimilarityThreshold: cfg.SimilarityThreshold,
			AutoAcceptExact:     cfg.AutoAcceptExact,
		}),
		cfg: cfg,
	}
}

// ImportBarcodes looks every record up by barcode and merges the provider's
// first answer.
func (im *Importer) ImportBarcodes(ctx context.Context, records []*metadata.Record) Summary {
	return im.run(ctx, "barcode", records, func(ctx context.Context, rec *metadata.Record) Result {
		if strings.TrimSpace(rec.Barcode) == "" {
			return skipped(rec, ReasonNoBarcode)
		}
		candidates, err := im.adapter.SearchByBarcode(ctx, rec.Barcode)
		if err != nil {
			return im.failed(ctx, rec, "search barcode", err)
		}
		ranked := im.engine.Rank(rec.Barcode, candidates, match.ModeExact)
		decision := im.engine.Decide(ranked, match.ModeExact)
		if decision.Choice == nil {
			return skipped(rec, ReasonNoMatch)
		}
		return im.commit(ctx, rec, decision.Choice.Result, nil, false)
	})
}

// ImportByName searches every record by title and merges the chosen
// candidate's full metadata.
func (im *Importer) ImportByName(ctx context.Context, records []*metadata.Record) Summary {
	return im.run(ctx, "name", records, func(ctx context.Context, rec *metadata.Record) Result {
		return im.importByName(ctx, rec, nil, false)
	})
}

// ImportProperty is ImportByName restricted to the given property slots.
func (im *Importer) ImportProperty(ctx context.Context, records []*metadata.Record, slots []metadata.Slot) Summary {
	return im.run(ctx, "property", records, func(ctx context.Context, rec *metadata.Record) Result {
		return im.importByName(ctx, rec, slots, true)
	})
}

func (im *Importer) importByName(ctx context.Context, rec *metadata.Record, slots []metadata.Slot, propertiesOnly bool) Result {
	if strings.TrimSpace(rec.Name) == "" {
		return skipped(rec, ReasonNoName)
	}
	candidates, err := im.adapter.SearchByQuery(ctx, rec.Name)
	if err != nil {
		return im.failed(ctx, rec, "search", err)
	}

	ranked := im.engine.Rank(rec.Name, candidates, match.ModeFuzzy)
	if len(ranked) == 0 {
		return skipped(rec, ReasonNoMatch)
	}

	decision := im.engine.Decide(ranked, match.ModeFuzzy)
	choice := decision.Choice
	if !decision.Auto {
		if im.chooser == nil {
			return skipped(rec, ReasonNeedsConfirm)
		}
		choice, err = im.choose(ctx, rec, decision.Candidates)
		if err != nil {
			return im.failed(ctx, rec, "choose", err)
		}
		if choice == nil {
			return skipped(rec, ReasonNoSelection)
		}
	}

	return im.commit(ctx, rec, choice.Result, slots, propertiesOnly)
}

func (im *Importer) choose(ctx context.Context, rec *metadata.Record, candidates []match.Ranked) (*match.Ranked, error) {
	im.chooseMu.Lock()
	defer im.chooseMu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return im.chooser.Choose(ctx, rec, candidates)
}

// ImportCategory walks the category tree under root and merges value into
// slot for every record whose name matches one of the category's articles.
func (im *Importer) ImportCategory(ctx context.Context, source metadata.CategorySource, root string, records []*metadata.Record, slot metadata.Slot, value string) (Summary, error) {
	if im.ids == nil {
		return Summary{}, errors.New("category import needs an id resolver")
	}

	titles, err := walk.Categories(ctx, source, root, walk.CategoryOptions{MaxDepth: im.cfg.MaxDepth, Limits: im.cfg.Limits})
	if err != nil {
		return Summary{}, fmt.Errorf("walk category %q: %w", root, err)
	}
	members := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		members[TitleKey(t)] = struct{}{}
	}
	logging.Info("category walked", "root", root, "titles", len(titles))

	ids, err := im.ids.ResolveIDs(ctx, slot, []string{value})
	if err != nil {
		return Summary{}, fmt.Errorf("resolve %s %q: %w", slot, value, err)
	}
	fields := merge.Fields{Properties: map[metadata.Slot]metadata.PropertySet{slot: ids}}

	summary := im.run(ctx, "category", records, func(ctx context.Context, rec *metadata.Record) Result {
		if !matchesAny(rec, members) {
			return skipped(rec, ReasonNotInCategory)
		}
		return im.apply(ctx, rec, "", fields, true)
	})
	return summary, nil
}

func matchesAny(rec *metadata.Record, members map[string]struct{}) bool {
	if _, ok := members[TitleKey(rec.Name)]; ok {
		return true
	}
	for _, n := range rec.Names {
		if _, ok := members[TitleKey(n)]; ok {
			return true
		}
	}
	return false
}

// TitleKey normalizes an article or record title for comparison. A trailing
// parenthesized disambiguation such as "(video game)" is dropped.
func TitleKey(title string) string {
	title = strings.ReplaceAll(title, "_", " ")
	if i := strings.LastIndex(title, " ("); i > 0 && strings.HasSuffix(title, ")") {
		title = title[:i]
	}
	return match.Normalize(title)
}

// commit fetches the candidate's details and merges them into rec.
func (im *Importer) commit(ctx context.Context, rec *metadata.Record, candidate metadata.RawSearchResult, slots []metadata.Slot, propertiesOnly bool) Result {
	if err := ctx.Err(); err != nil {
		return skipped(rec, ReasonCancelled)
	}
	details, err := im.adapter.GetDetails(ctx, candidate)
	if err != nil {
		return im.failed(ctx, rec, "get details", err)
	}

	fields := merge.FieldsFromDetails(details)
	if im.ids != nil {
		props, err := merge.ResolveProperties(ctx, im.ids, details, slots)
		if err != nil {
			return im.failed(ctx, rec, "resolve properties", err)
		}
		fields.Properties = props
	}

	return im.apply(ctx, rec, candidate.Name, fields, propertiesOnly)
}

func (im *Importer) apply(ctx context.Context, rec *metadata.Record, matched string, fields merge.Fields, propertiesOnly bool) Result {
	// Work fetched after cancellation is discarded.
	if err := ctx.Err(); err != nil {
		return skipped(rec, ReasonCancelled)
	}

	// rec only takes the merged state once it is saved.
	target := rec.Clone()
	changes := merge.Apply(target, fields, merge.Options{Policy: im.cfg.Policy, PropertiesOnly: propertiesOnly})

	res := Result{RecordID: rec.ID, Name: rec.Name, Status: StatusSucceeded, Match: matched, Changes: changes}
	if changes.Empty() {
		res.Reason = ReasonNoChanges
		return res
	}
	if im.cfg.DryRun {
		return res
	}
	if im.saver != nil {
		if err := im.saver.SaveRecord(ctx, target); err != nil {
			return im.failed(ctx, rec, "save record", err)
		}
	}
	*rec = *target
	return res
}

func skipped(rec *metadata.Record, reason string) Result {
	return Result{RecordID: rec.ID, Name: rec.Name, Status: StatusSkipped, Reason: reason}
}

// failed reports err for rec, or a cancellation skip when err came from the
// context being cancelled.
func (im *Importer) failed(ctx context.Context, rec *metadata.Record, op string, err error) Result {
	if ctx.Err() != nil {
		return skipped(rec, ReasonCancelled)
	}
	reason := op
	if errors.Is(err, metadata.ErrUnsupported) {
		reason = op + ": unsupported by " + im.adapter.Name()
	}
	return Result{
		RecordID: rec.ID,
		Name:     rec.Name,
		Status:   StatusFailed,
		Reason:   reason,
		Err:      fmt.Errorf("%s: %w", op, err),
	}
}

type job struct {
	index  int
	record *metadata.Record
}

type jobResult struct {
	index  int
	result Result
}

// run processes records with a bounded pool of workers. Records that are
// not started before ctx is cancelled are reported as skipped.
func (im *Importer) run(ctx context.Context, workflow string, records []*metadata.Record, process func(context.Context, *metadata.Record) Result) Summary {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "importer."+workflow,
		tracing.WithAttributes(
			attribute.String("import.workflow", workflow),
			attribute.String("import.source", im.adapter.Name()),
			attribute.Int("import.records", len(records)),
			attribute.Bool("import.dry_run", im.cfg.DryRun),
		))
	defer span.End()

	log := logging.For("importer")
	log.Info("import started", "workflow", workflow, "source", im.adapter.Name(), "records", len(records), "workers", im.cfg.Workers)

	summary := Summary{Workflow: workflow, DryRun: im.cfg.DryRun, Results: make([]Result, len(records))}

	jobs := make(chan job, im.cfg.Workers*2)
	results := make(chan jobResult, im.cfg.Workers*2)

	var wg sync.WaitGroup
	for i := 0; i < im.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- jobResult{index: j.index, result: im.processRecord(ctx, workflow, j.record, process)}
			}
		}()
	}

	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		for r := range results {
			summary.Results[r.index] = r.result
			summary.add(r.result)
			metrics.ImportRecords.WithLabelValues(workflow, r.result.Status.String()).Inc()
			if r.result.Status == StatusFailed {
				log.Warn("record failed", "workflow", workflow, "record", r.result.RecordID, "name", r.result.Name, "error", r.result.Err)
			}
			if im.cfg.OnResult != nil {
				im.cfg.OnResult(r.result)
			}
		}
	}()

	sent := 0
produce:
	for ; sent < len(records); sent++ {
		select {
		case <-ctx.Done():
			break produce
		case jobs <- job{index: sent, record: records[sent]}:
		}
	}
	close(jobs)
	wg.Wait()

	// Records never handed to a worker.
	for i := sent; i < len(records); i++ {
		results <- jobResult{index: i, result: skipped(records[i], ReasonCancelled)}
	}
	close(results)
	collectorWg.Wait()

	summary.Duration = time.Since(start)
	metrics.RecordImportDuration(workflow, start)
	tracing.AddSpanAttributes(span,
		attribute.Int("import.succeeded", summary.Succeeded),
		attribute.Int("import.skipped", summary.Skipped),
		attribute.Int("import.failed", summary.Failed),
	)
	log.Info("import finished",
		"workflow", workflow,
		"succeeded", summary.Succeeded,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration", summary.Duration)

	return summary
}

func (im *Importer) processRecord(ctx context.Context, workflow string, rec *metadata.Record, process func(context.Context, *metadata.Record) Result) Result {
	if ctx.Err() != nil {
		return skipped(rec, ReasonCancelled)
	}

	ctx, span := tracing.StartSpan(ctx, "importer.record",
		tracing.WithAttributes(
			attribute.String("import.workflow", workflow),
			attribute.String("record.id", rec.ID),
			attribute.String("record.name", rec.Name),
		))
	defer span.End()

	res := process(ctx, rec)
	tracing.AddSpanAttributes(span, attribute.String("import.status", res.Status.String()))
	if res.Err != nil {
		tracing.RecordError(span, res.Err)
	}
	return res
}
