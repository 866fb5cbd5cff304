package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
)

const (
	DefaultMaxLoginAttempts = 5
	DefaultLoginRetryDelay  = 5 * time.Second
	DefaultDocumentTimeout  = 45 * time.Second

	maxRowErrorLength = 1000
)

var (
	// ErrLoginExhausted aborts a run whose portal login kept failing.
	ErrLoginExhausted = errors.New("pipeline: login attempts exhausted")
	// ErrDocumentTimeout is recorded when an extraction exceeds its deadline.
	ErrDocumentTimeout = errors.New("pipeline: document extraction timed out")
	// ErrNoExtractor is recorded when no extractor handles a document kind.
	ErrNoExtractor = errors.New("pipeline: no extractor for document")
)

// Record outcomes reported to the Observer.
const (
	ResultProcessed   = "processed"
	ResultFailed      = "failed"
	ResultSkipped     = "skipped"
	ResultPlaceholder = "placeholder"
)

// PipelineConfig tunes a Pipeline.
type PipelineConfig struct {
	Provider         billing.Provider
	Workers          int
	MaxLoginAttempts int
	LoginRetryDelay  time.Duration
	DocumentTimeout  time.Duration
}

// PipelineDeps groups the collaborators of a Pipeline.
type PipelineDeps struct {
	Portal     Portal
	Ledger     Ledger
	Extractors map[billing.DocumentKind]FieldExtractor
	Reconciler *Reconciler
	Calculator *Calculator
	Sinks      []NamedSink
	Observer   Observer
	Logger     zerolog.Logger
}

// RunResult summarizes a run.
type RunResult struct {
	RunID        string
	Provider     billing.Provider
	Query        Query
	StartedAt    time.Time
	FinishedAt   time.Time
	Records      []*billing.Invoice
	Processed    int
	Failed       int
	Skipped      int
	Placeholders int
	SinkErrors   int
}

// Pipeline turns portal rows into finalized invoice records.
type Pipeline struct {
	cfg        PipelineConfig
	schema     billing.Schema
	portal     Portal
	ledger     Ledger
	extractors map[billing.DocumentKind]FieldExtractor
	reconciler *Reconciler
	calculator *Calculator
	sinks      []NamedSink
	observer   Observer
	logger     zerolog.Logger
}

// NewPipeline validates its collaborators and applies defaults.
func NewPipeline(cfg PipelineConfig, deps PipelineDeps) (*Pipeline, error) {
	schema, err := billing.SchemaFor(cfg.Provider)
	if err != nil {
		return nil, err
	}
	if deps.Portal == nil {
		return nil, errors.New("pipeline: nil portal")
	}
	if deps.Ledger == nil {
		return nil, errors.New("pipeline: nil ledger")
	}
	if deps.Reconciler == nil {
		return nil, errors.New("pipeline: nil reconciler")
	}
	if deps.Calculator == nil {
		return nil, errors.New("pipeline: nil calculator")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxLoginAttempts <= 0 {
		cfg.MaxLoginAttempts = DefaultMaxLoginAttempts
	}
	if cfg.LoginRetryDelay < 0 {
		cfg.LoginRetryDelay = 0
	}
	if cfg.DocumentTimeout <= 0 {
		cfg.DocumentTimeout = DefaultDocumentTimeout
	}
	return &Pipeline{
		cfg:        cfg,
		schema:     schema,
		portal:     deps.Portal,
		ledger:     deps.Ledger,
		extractors: deps.Extractors,
		reconciler: deps.Reconciler,
		calculator: deps.Calculator,
		sinks:      deps.Sinks,
		observer:   deps.Observer,
		logger:     deps.Logger.With().Str("component", "pipeline").Str("provider", string(cfg.Provider)).Logger(),
	}, nil
}

// workItem is either a portal row or a record built without one.
type workItem struct {
	row     *Row
	account string
	record  *billing.Invoice
}

type outcome struct {
	seq     int
	inv     *billing.Invoice
	skipped bool
	// fromRow marks records built from a portal row, the only ones keyed in
	// the ledger.
	fromRow bool
}

// Run logs into the portal, searches and processes every row of query.
// Only a failed login is fatal.
func (p *Pipeline) Run(ctx context.Context, query Query) (RunResult, error) {
	result := RunResult{
		RunID:     uuid.NewString(),
		Provider:  p.cfg.Provider,
		Query:     query,
		StartedAt: time.Now().UTC(),
	}
	logger := p.logger.With().Str("run_id", result.RunID).Logger()
	defer func() {
		if err := p.portal.Close(); err != nil {
			logger.Warn().Err(err).Str("event", "portal_close_failed").Msg("portal close failed")
		}
	}()

	if err := p.login(ctx, logger); err != nil {
		result.FinishedAt = time.Now().UTC()
		return result, err
	}

	items, err := p.collect(ctx, query, logger)
	if err != nil {
		result.FinishedAt = time.Now().UTC()
		return result, err
	}
	logger.Info().Str("event", "run_started").Int("rows", len(items)).Int("workers", p.cfg.Workers).Msg("processing rows")

	emit := func(out outcome) {
		p.finalize(ctx, out, &result, logger)
	}
	if p.cfg.Workers == 1 {
		for i, item := range items {
			out := p.process(ctx, item, logger)
			out.seq = i
			emit(out)
		}
	} else if err := p.runParallel(ctx, items, emit, logger); err != nil {
		logger.Error().Err(err).Str("event", "workers_failed").Msg("worker pool failed")
	}

	result.FinishedAt = time.Now().UTC()
	logger.Info().
		Str("event", "run_finished").
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Int("placeholders", result.Placeholders).
		Dur("elapsed", result.FinishedAt.Sub(result.StartedAt)).
		Msg("run finished")
	return result, nil
}

func (p *Pipeline) login(ctx context.Context, logger zerolog.Logger) error {
	var last error
	for attempt := 1; attempt <= p.cfg.MaxLoginAttempts; attempt++ {
		if last = p.portal.Login(ctx); last == nil {
			logger.Info().Str("event", "login_ok").Int("attempt", attempt).Msg("portal login")
			return nil
		}
		logger.Warn().Err(last).Str("event", "login_failed").Int("attempt", attempt).Msg("portal login failed")
		if attempt == p.cfg.MaxLoginAttempts {
			break
		}
		timer := time.NewTimer(p.cfg.LoginRetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", ErrLoginExhausted, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrLoginExhausted, p.cfg.MaxLoginAttempts, last)
}

// collect searches the portal. With accounts, each one is searched on its own
// and yields a placeholder when it has no invoices in the period.
func (p *Pipeline) collect(ctx context.Context, query Query, logger zerolog.Logger) ([]workItem, error) {
	if len(query.Accounts) == 0 {
		rows, err := p.portal.Search(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("pipeline: search: %w", err)
		}
		items := make([]workItem, 0, len(rows))
		for i := range rows {
			items = append(items, workItem{row: &rows[i]})
		}
		return items, nil
	}

	var items []workItem
	for _, account := range query.Accounts {
		rows, err := p.portal.Search(ctx, Query{Accounts: []string{account}, From: query.From, To: query.To})
		switch {
		case err != nil:
			logger.Warn().Err(err).Str("event", "account_search_failed").Str("cup", account).Msg("account search failed")
			items = append(items, workItem{account: account, record: p.errorRecord(account, err)})
		case len(rows) == 0:
			note := fmt.Sprintf("Sin facturas emitidas en el periodo (%s - %s)", query.From, query.To)
			placeholder, perr := billing.NewPlaceholder(p.cfg.Provider, account, note)
			if perr != nil {
				logger.Warn().Err(perr).Str("cup", account).Msg("placeholder rejected")
				continue
			}
			items = append(items, workItem{account: account, record: placeholder})
		default:
			for i := range rows {
				items = append(items, workItem{row: &rows[i], account: account})
			}
		}
	}
	return items, nil
}

func (p *Pipeline) errorRecord(account string, err error) *billing.Invoice {
	inv, nerr := billing.NewInvoice(p.cfg.Provider, account)
	if nerr != nil {
		return nil
	}
	detail := err.Error()
	if len(detail) > maxRowErrorLength {
		detail = detail[:maxRowErrorLength]
	}
	inv.Fail(billing.FailureRow, detail)
	return inv
}

func (p *Pipeline) runParallel(ctx context.Context, items []workItem, emit func(outcome), logger zerolog.Logger) error {
	results := make(chan outcome)
	done := make(chan struct{})
	go func() {
		defer close(done)
		pending := make(map[int]outcome)
		next := 0
		for out := range results {
			pending[out.seq] = out
			for {
				ready, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				emit(ready)
				next++
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			out := p.process(gctx, item, logger)
			out.seq = i
			results <- out
			return nil
		})
	}
	err := g.Wait()
	close(results)
	<-done
	return err
}

// process runs the per-row stages that do not touch shared stores.
func (p *Pipeline) process(ctx context.Context, item workItem, logger zerolog.Logger) outcome {
	if item.record != nil || item.row == nil {
		return outcome{inv: item.record}
	}
	inv, err := InvoiceFromRow(p.cfg.Provider, *item.row, item.account)
	if err != nil {
		logger.Warn().Err(err).Str("event", "row_failed").Msg("row extraction failed")
		if item.account == "" {
			return outcome{}
		}
		return outcome{inv: p.errorRecord(item.account, err)}
	}

	if at, ok := p.ledger.IsProcessed(ctx, p.cfg.Provider, inv.AccountCode(), inv.Number()); ok {
		logger.Info().
			Str("event", "invoice_skipped").
			Str("cup", inv.AccountCode()).
			Str("invoice", inv.Number()).
			Time("processed_at", at).
			Msg("already processed")
		return outcome{inv: inv, skipped: true}
	}

	p.documents(ctx, inv, *item.row, logger)
	if err := p.calculator.Apply(inv); err != nil {
		logger.Warn().Err(err).Str("event", "aggregate_failed").Str("invoice", inv.Number()).Msg("aggregates incomplete")
	}
	return outcome{inv: inv, fromRow: true}
}

// documents merges the fields of the preferred available document.
func (p *Pipeline) documents(ctx context.Context, inv *billing.Invoice, row Row, logger zerolog.Logger) {
	if p.cfg.Provider == billing.ProviderEnel {
		if total, ok := inv.TotalAmount.Get(); ok && total < 0 {
			inv.Fail(billing.FailureNegativeAmount, "El importe total de la factura es negativo, por lo que no se procesará su PDF.")
			return
		}
	}

	for _, kind := range []billing.DocumentKind{billing.DocumentXML, billing.DocumentPDF} {
		if reason, failed := row.DownloadFailures[kind]; failed {
			inv.Fail(billing.FailureDownload, fmt.Sprintf("No se ha podido descargar el archivo %s: %s", kindLabel(kind), reason))
		}
	}

	used := false
	for _, kind := range p.preference() {
		path := row.Documents[kind]
		if path == "" {
			continue
		}
		used = true
		fields, err := p.extract(ctx, billing.Document{Kind: kind, Path: path})
		if err != nil {
			code := billing.FailureRecognition
			if kind == billing.DocumentXML {
				code = billing.FailureParse
			}
			logger.Warn().Err(err).Str("event", "extraction_failed").Str("kind", string(kind)).Str("invoice", inv.Number()).Msg("document extraction failed")
			inv.Fail(code, err.Error())
			continue
		}
		merged := p.reconciler.Reconcile(inv, fields)
		logger.Debug().
			Str("event", "document_merged").
			Str("kind", string(kind)).
			Int("applied", len(merged.Applied)).
			Int("discrepancies", len(merged.Discrepancies)).
			Msg("document merged")
		return
	}
	if !used {
		inv.Fail(billing.FailureFiles, "No hay ningún documento disponible para esta factura.")
	}
}

func (p *Pipeline) preference() []billing.DocumentKind {
	if p.cfg.Provider == billing.ProviderEnel {
		return []billing.DocumentKind{billing.DocumentPDF}
	}
	return []billing.DocumentKind{billing.DocumentXML, billing.DocumentPDF}
}

// extract bounds one extraction by the document timeout, even when the
// extractor ignores its context.
func (p *Pipeline) extract(ctx context.Context, doc billing.Document) (map[string]any, error) {
	extractor, ok := p.extractors[doc.Kind]
	if !ok || extractor == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoExtractor, doc.Kind)
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.DocumentTimeout)
	defer cancel()

	type extraction struct {
		fields map[string]any
		err    error
	}
	start := time.Now()
	done := make(chan extraction, 1)
	go func() {
		fields, err := extractor.Extract(ctx, doc, p.schema)
		done <- extraction{fields: fields, err: err}
	}()

	var res extraction
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = fmt.Errorf("%w: %s", ErrDocumentTimeout, doc.Kind)
	}
	if p.observer != nil {
		status := "ok"
		if res.err != nil {
			status = "error"
		}
		p.observer.ObserveExtraction(string(doc.Kind), status, time.Since(start))
	}
	return res.fields, res.err
}

// finalize runs in a single goroutine: sinks and ledger writes are serialized.
func (p *Pipeline) finalize(ctx context.Context, out outcome, result *RunResult, logger zerolog.Logger) {
	inv := out.inv
	if inv == nil {
		result.Failed++
		p.observeRecord(ResultFailed)
		return
	}
	// Workers check the ledger before earlier rows are finalized, so a key
	// repeated in one run is caught here.
	if !out.skipped && out.fromRow {
		if _, ok := p.ledger.IsProcessed(ctx, p.cfg.Provider, inv.AccountCode(), inv.Number()); ok {
			logger.Info().Str("event", "invoice_skipped").Str("cup", inv.AccountCode()).Str("invoice", inv.Number()).Msg("duplicate in run")
			out.skipped = true
		}
	}
	if out.skipped {
		result.Skipped++
		p.observeRecord(ResultSkipped)
		return
	}

	for _, sink := range p.sinks {
		if err := sink.Sink.Write(ctx, inv); err != nil {
			result.SinkErrors++
			logger.Error().Err(err).Str("event", "sink_failed").Str("sink", sink.Name).Str("invoice", inv.Number()).Msg("sink write failed")
			if p.observer != nil {
				p.observer.ObserveSinkError(sink.Name)
			}
		}
	}
	result.Records = append(result.Records, inv)

	switch {
	case inv.HasError():
		result.Failed++
		p.observeRecord(ResultFailed)
	case inv.IsPlaceholder():
		result.Placeholders++
		p.observeRecord(ResultPlaceholder)
	default:
		p.ledger.MarkProcessed(ctx, p.cfg.Provider, inv.AccountCode(), inv.Number())
		result.Processed++
		p.observeRecord(ResultProcessed)
	}
}

func (p *Pipeline) observeRecord(status string) {
	if p.observer != nil {
		p.observer.ObserveRecord(string(p.cfg.Provider), status)
	}
}

func kindLabel(kind billing.DocumentKind) string {
	if kind == billing.DocumentXML {
		return "XML"
	}
	return "PDF"
}
