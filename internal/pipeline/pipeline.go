// Package pipeline orchestrates the refresh: extract POS exports, run the
// transforms, load both warehouses, then verify against golden baselines.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"moonwalketl/internal/config"
	"moonwalketl/internal/dimperiod"
	"moonwalketl/internal/insights"
	"moonwalketl/internal/metrics"
	"moonwalketl/internal/source"
	"moonwalketl/internal/storage"
	"moonwalketl/internal/table"
	"moonwalketl/internal/transform"
	"moonwalketl/internal/verify"
)

// State is how far a run progressed. Each stage only runs when every stage
// before it succeeded; the returned state tells the caller which outputs are
// trustworthy.
type State string

const (
	StateStarted      State = "STARTED"
	StateExtracted    State = "EXTRACTED"
	StateTransformed  State = "TRANSFORMED"
	StateLocalLoaded  State = "LOCAL_LOADED"
	StateRemoteSynced State = "REMOTE_SYNCED"
	StateVerified     State = "VERIFIED"
)

// Options select which stages a run executes.
type Options struct {
	// TransformOnly stops after the staging CSVs are written.
	TransformOnly bool
	// LoadOnly reloads the warehouses from the existing staging CSVs,
	// skipping extract and transform.
	LoadOnly bool
	// VerifyOnly runs only the golden-baseline comparison.
	VerifyOnly bool
}

// Runner executes the pipeline. The clock, sink constructor and verifier are
// fields so tests can substitute them.
type Runner struct {
	cfg     config.Config
	now     func() time.Time
	newSink func(context.Context, storage.Config) (storage.Sink, error)
	verify  func(config.Config) ([]verify.Result, bool)
}

// NewRunner builds a Runner with the production wiring.
func NewRunner(cfg config.Config) *Runner {
	return &Runner{
		cfg:     cfg,
		now:     time.Now,
		newSink: storage.New,
		verify:  verify.All,
	}
}

// outputs are the transform results keyed for loading and validation.
type outputs struct {
	customers *table.Table
	sales     *table.Table
	items     *table.Table
	quality   *table.Table
	dimPeriod *table.Table
	insights  *table.Table
}

func (o outputs) tables() []*table.Table {
	var ts []*table.Table
	for _, t := range []*table.Table{
		o.customers, o.sales, o.items, o.quality, o.dimPeriod, o.insights,
	} {
		if t != nil {
			ts = append(ts, t)
		}
	}
	return ts
}

// Run executes the selected stages and returns how far it got.
func (r *Runner) Run(ctx context.Context, opts Options) (State, error) {
	state := StateStarted

	if opts.VerifyOnly {
		if err := r.runVerify(); err != nil {
			return state, err
		}
		return StateVerified, nil
	}

	var out outputs
	if opts.LoadOnly {
		staged, err := r.readStaged()
		if err != nil {
			return state, err
		}
		out = staged
		out.insights = insights.Table(insights.Generate(insights.Input{
			Sales:   out.sales,
			Items:   out.items,
			Quality: out.quality,
			Today:   r.now().UTC(),
		}))
		state = StateTransformed
	} else {
		// A stale date dimension degrades reports but does not invalidate
		// the fact tables, so failure here only warns.
		dim, err := runStage(r, "dimperiod", func() (*table.Table, error) {
			return r.ensureDimPeriod()
		})
		if err != nil {
			log.Printf("[WARN] dim_period check failed, continuing with existing file: %v", err)
		}
		out.dimPeriod = dim

		src, err := runStage(r, "extract", func() (srcSet, error) {
			return r.extract(ctx)
		})
		if err != nil {
			return state, err
		}
		state = StateExtracted

		transformed, err := runStage(r, "transform", func() (outputs, error) {
			return r.transform(src)
		})
		if err != nil {
			return state, err
		}
		transformed.dimPeriod = out.dimPeriod
		out = transformed
		state = StateTransformed

		if err := r.writeStaging(out); err != nil {
			return state, err
		}
	}

	if opts.TransformOnly {
		return state, nil
	}

	if _, err := runStage(r, "load_local", func() (struct{}, error) {
		return struct{}{}, r.load(ctx, storage.Config{Kind: "sqlite", DSN: r.cfg.DBPath}, out)
	}); err != nil {
		return state, err
	}
	state = StateLocalLoaded

	if !r.cfg.RemoteEnabled() {
		log.Printf("remote sync disabled: ANALYTICS_DATABASE_URL is not set")
	} else {
		if _, err := runStage(r, "sync_remote", func() (struct{}, error) {
			return struct{}{}, r.load(ctx, storage.Config{
				Kind:          "postgres",
				DSN:           r.cfg.AnalyticsDatabaseURL,
				EncryptionKey: r.cfg.EncryptionKey,
			}, out)
		}); err != nil {
			return state, err
		}
		state = StateRemoteSynced
	}

	if err := r.runVerify(); err != nil {
		return state, err
	}
	return StateVerified, nil
}

func stageMetrics(r *Runner, name string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.IncCounter(metrics.StageTotal, 1, metrics.Labels{"stage": name, "status": status})
	metrics.ObserveHistogram(metrics.StageDurationSeconds, r.now().Sub(start).Seconds(),
		metrics.Labels{"stage": name})
}

// runStage wraps a pipeline step with duration and outcome metrics.
func runStage[T any](r *Runner, name string, fn func() (T, error)) (T, error) {
	start := r.now()
	v, err := fn()
	stageMetrics(r, name, start, err)
	if err != nil {
		return v, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// srcSet holds the extracted source tables.
type srcSet struct {
	ccCustomers *table.Table
	orders      *table.Table
	invoices    *table.Table
	items       *table.Table
	legacy      *table.Table
}

// ensureDimPeriod regenerates the date dimension when the staged copy is
// missing or no longer covers the lookahead window, and returns the current
// table either way.
func (r *Runner) ensureDimPeriod() (*table.Table, error) {
	path := r.cfg.StagingFile(config.DimPeriodFile)
	today := r.now().UTC()

	var existing *table.Table
	if _, err := os.Stat(path); err == nil {
		existing, err = table.ReadFile("dim_period", path)
		if err != nil {
			return nil, err
		}
	}

	update, reason := dimperiod.NeedsUpdate(existing, today)
	if !update {
		log.Printf("[OK] dim_period is current (%d rows)", len(existing.Rows))
		return existing, nil
	}
	log.Printf("[WARN] dim_period needs update: %s", reason)

	t := dimperiod.Generate(today)
	if err := t.WriteFile(path); err != nil {
		return nil, err
	}
	log.Printf("[OK] dim_period regenerated (%d rows)", len(t.Rows))
	return t, nil
}

// extract locates the newest POS exports and parses them.
func (r *Runner) extract(ctx context.Context) (srcSet, error) {
	var s srcSet
	for _, want := range []struct {
		dst     **table.Table
		name    string
		pattern string
	}{
		{&s.ccCustomers, "cc_customers", source.PatternCustomers},
		{&s.orders, "cc_orders", source.PatternOrders},
		{&s.invoices, "cc_invoices", source.PatternInvoices},
		{&s.items, "cc_items", source.PatternItems},
	} {
		path, err := source.FindExport(r.cfg.DownloadsPath, want.pattern)
		if err != nil {
			return s, err
		}
		t, err := source.Extract(ctx, want.name, path)
		if err != nil {
			return s, err
		}
		log.Printf("extracted %s: %d rows from %s", want.name, len(t.Rows), path)
		*want.dst = t
	}

	legacyPath, err := source.LegacyArchive(r.cfg.StagingPath)
	if err != nil {
		return s, err
	}
	legacy, err := source.Extract(ctx, "legacy_orders", legacyPath)
	if err != nil {
		return s, err
	}
	log.Printf("extracted legacy_orders: %d rows", len(legacy.Rows))
	s.legacy = legacy
	return s, nil
}

// transform runs the four transforms in dependency order, validating each
// output before the next consumes it.
func (r *Runner) transform(src srcSet) (outputs, error) {
	var out outputs

	customers, err := transform.Customers(src.ccCustomers, src.legacy)
	if err != nil {
		return out, err
	}
	validateOutput(customers, "CustomerID_Std")
	out.customers = customers

	sales, err := transform.Sales(transform.SalesInput{
		Legacy:      src.legacy,
		Orders:      src.orders,
		Invoices:    src.invoices,
		CCCustomers: src.ccCustomers,
		Customers:   customers,
	})
	if err != nil {
		return out, err
	}
	validateOutput(sales, "CustomerID_Std", "OrderID_Std")
	out.sales = sales

	items, err := transform.Items(src.items, src.ccCustomers)
	if err != nil {
		return out, err
	}
	validateOutput(items, "CustomerID_Std", "OrderID_Std")
	out.items = items

	quality, err := transform.CustomerQuality(sales, items)
	if err != nil {
		return out, err
	}
	validateOutput(quality, "CustomerID_Std")
	out.quality = quality

	validateCross(sales, items, customers)

	out.insights = insights.Table(insights.Generate(insights.Input{
		Sales:   sales,
		Items:   items,
		Quality: quality,
		Today:   r.now().UTC(),
	}))
	log.Printf("generated %d insights", len(out.insights.Rows))

	return out, nil
}

// validateOutput warns about empty outputs and null key columns. Warnings
// only; a partially keyed output still loads, but the operator should know.
func validateOutput(t *table.Table, keyColumns ...string) {
	metrics.IncCounter(metrics.RecordsTotal, float64(len(t.Rows)), metrics.Labels{"table": t.Name})

	var issues []string
	if len(t.Rows) == 0 {
		issues = append(issues, "EMPTY: 0 rows produced")
	}
	for _, key := range keyColumns {
		idx := t.ColumnIndex(key)
		if idx < 0 {
			continue
		}
		nulls := 0
		for _, row := range t.Rows {
			if row[idx] == nil {
				nulls++
			}
		}
		if nulls > 0 {
			pct := float64(nulls) / float64(len(t.Rows)) * 100
			issues = append(issues, fmt.Sprintf("NULL KEYS: %d (%.1f%%) null values in %s", nulls, pct, key))
		}
	}

	if len(issues) == 0 {
		log.Printf("[VALIDATION] %s: OK (%d rows, keys clean)", t.Name, len(t.Rows))
		return
	}
	log.Printf("[VALIDATION] %s:", t.Name)
	for _, issue := range issues {
		log.Printf("  - %s", issue)
	}
}

// validateCross checks referential integrity across transform outputs.
func validateCross(sales, items, customers *table.Table) {
	salesOrders := distinct(sales, "OrderID_Std")
	itemOrders := distinct(items, "OrderID_Std")

	orphans := 0
	for id := range itemOrders {
		if _, ok := salesOrders[id]; !ok {
			orphans++
		}
	}
	if orphans > 0 {
		pct := float64(orphans) / float64(len(itemOrders)) * 100
		log.Printf("[WARN] orphan orders: %d orders in items with no sales match (%.1f%% of item orders)",
			orphans, pct)
		log.Printf("  Known issue: CleanCloud CSV export mismatch (not ETL bug)")
	} else {
		log.Printf("[OK] no orphan orders (all item orders found in sales)")
	}

	salesCustomers := distinct(sales, "CustomerID_Std")
	knownCustomers := distinct(customers, "CustomerID_Std")
	missing := 0
	for id := range salesCustomers {
		if _, ok := knownCustomers[id]; !ok {
			missing++
		}
	}
	if missing > 0 {
		log.Printf("[WARN] %d customer(s) in sales but not in customers table", missing)
	} else {
		log.Printf("[OK] all sales customers found in customers table")
	}
}

func distinct(t *table.Table, column string) map[string]struct{} {
	out := map[string]struct{}{}
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return out
	}
	for _, row := range t.Rows {
		if s, ok := row[idx].(string); ok && s != "" {
			out[s] = struct{}{}
		}
	}
	return out
}

// stagingFiles maps each output to its staging CSV name.
func stagingFiles(out outputs) map[string]*table.Table {
	return map[string]*table.Table{
		config.CustomersFile: out.customers,
		config.SalesFile:     out.sales,
		config.ItemsFile:     out.items,
		config.QualityFile:   out.quality,
	}
}

func (r *Runner) writeStaging(out outputs) error {
	for name, t := range stagingFiles(out) {
		if t == nil {
			continue
		}
		if err := t.WriteFile(r.cfg.StagingFile(name)); err != nil {
			return fmt.Errorf("write staging %s: %w", name, err)
		}
	}
	return nil
}

// readStaged rebuilds the output set from the staging CSVs for load-only
// runs. Cells come back untyped; the sink rules still type the date, bool
// and smallint columns.
func (r *Runner) readStaged() (outputs, error) {
	var out outputs
	for _, want := range []struct {
		dst  **table.Table
		name string
		file string
	}{
		{&out.customers, "customers", config.CustomersFile},
		{&out.sales, "sales", config.SalesFile},
		{&out.items, "items", config.ItemsFile},
		{&out.quality, "customer_quality", config.QualityFile},
		{&out.dimPeriod, "dim_period", config.DimPeriodFile},
	} {
		t, err := table.ReadFile(want.name, r.cfg.StagingFile(want.file))
		if err != nil {
			return out, fmt.Errorf("read staged %s: %w", want.file, err)
		}
		*want.dst = t
	}
	return out, nil
}

func (r *Runner) load(ctx context.Context, cfg storage.Config, out outputs) error {
	sink, err := r.newSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer sink.Close()
	return sink.Load(ctx, out.tables())
}

func (r *Runner) runVerify() error {
	start := r.now()
	_, ok := r.verify(r.cfg)
	var err error
	if !ok {
		err = fmt.Errorf("verify: outputs do not match golden baselines")
	}
	stageMetrics(r, "verify", start, err)
	return err
}
