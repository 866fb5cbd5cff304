package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/application"
	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/infrastructure/extraction"
	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/interfaces/export"
	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/interfaces/manifest"
	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/config"
	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/housekeeping"
	ledgerapp "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/ledger/application"
	ledger "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/ledger/domain"
	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/ledger/infrastructure/csvfile"
	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/ledger/infrastructure/sqlstore"
	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/notify"
	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/observability/logging"
	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/observability/metrics"
)

const extractionCacheTTL = 6 * time.Hour

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "run":
		err = runCommand(ctx, cfg, logger, os.Args[2:])
	case "clean":
		err = cleanCommand(cfg, logger, os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
		return
	default:
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		logger.Error().Err(err).Str("event", "command_failed").Str("command", os.Args[1]).Msg("command failed")
		stop()
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage:")
	fmt.Fprintln(w, "  rpa-luz run -provider endesa|enel -from DD/MM/YYYY -to DD/MM/YYYY -manifest file [-accounts a,b] [-reprocess]")
	fmt.Fprintln(w, "  rpa-luz clean [-provider endesa|enel|all] [-type pdf|xml|csv|all] [-date DD/MM/YYYY|MM/YYYY|YYYY]")
}

type runFlags struct {
	provider  string
	from      string
	to        string
	manifest  string
	accounts  string
	reprocess bool
}

func parseRunFlags(args []string) (runFlags, error) {
	var f runFlags
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.StringVar(&f.provider, "provider", "", "endesa or enel")
	fs.StringVar(&f.from, "from", "", "period start DD/MM/YYYY")
	fs.StringVar(&f.to, "to", "", "period end DD/MM/YYYY")
	fs.StringVar(&f.manifest, "manifest", "", "portal result table (CSV)")
	fs.StringVar(&f.accounts, "accounts", "", "comma separated account codes")
	fs.BoolVar(&f.reprocess, "reprocess", false, "ignore the processed-invoice ledger")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.provider == "" || f.from == "" || f.to == "" || f.manifest == "" {
		return f, errors.New("run: -provider, -from, -to and -manifest are required")
	}
	return f, nil
}

func splitAccounts(value string) []string {
	var accounts []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			accounts = append(accounts, part)
		}
	}
	return accounts
}

func runCommand(ctx context.Context, cfg config.Config, logger zerolog.Logger, args []string) (err error) {
	flags, err := parseRunFlags(args)
	if err != nil {
		return err
	}
	provider, err := billing.ParseProvider(flags.provider)
	if err != nil {
		return err
	}

	m := metrics.New()
	defer func() {
		if cfg.Metrics.Textfile == "" {
			return
		}
		if werr := m.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			logger.Warn().Err(werr).Str("event", "metrics_write_failed").Msg("metrics textfile not written")
		}
	}()

	store, closeStore, err := openLedgerStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, closeStore())
	}()

	run, err := ledgerapp.NewRun(store, cfg.Reprocess || flags.reprocess,
		ledgerapp.WithLogger(logger),
		ledgerapp.WithErrorObserver(m),
	)
	if err != nil {
		return err
	}

	portal, err := manifest.NewPortal(flags.manifest, logger, manifest.WithDownloadLayout(cfg.DataRoot, provider))
	if err != nil {
		return err
	}

	calculator, err := application.NewCalculator(cfg.Aggregates.Enel, logger)
	if err != nil {
		return err
	}

	csvSink, err := export.NewCSVSink(cfg.ExportDirFor(string(provider)), provider)
	if err != nil {
		return err
	}
	workbook, err := export.NewWorkbookSink(cfg.WorkbookPath, provider, logger)
	if err != nil {
		return err
	}

	prompts, err := extraction.InstructionsFromFiles(cfg.Recognition.Prompts)
	if err != nil {
		return err
	}

	pipeline, err := application.NewPipeline(application.PipelineConfig{
		Provider:         provider,
		Workers:          cfg.Workers,
		MaxLoginAttempts: cfg.MaxLoginAttempts,
		LoginRetryDelay:  cfg.LoginRetryDelay,
		DocumentTimeout:  cfg.DocumentTimeout,
	}, application.PipelineDeps{
		Portal: portal,
		Ledger: run,
		Extractors: map[billing.DocumentKind]application.FieldExtractor{
			billing.DocumentXML: extraction.NewCachedExtractor(extraction.NewXMLExtractor(logger), extractionCacheTTL),
			billing.DocumentPDF: extraction.NewCachedExtractor(extraction.NewRecognitionExtractor(cfg.Recognition, logger, prompts...), extractionCacheTTL),
		},
		Reconciler: application.NewReconciler(logger, m),
		Calculator: calculator,
		Sinks: []application.NamedSink{
			{Name: "csv", Sink: csvSink},
			{Name: "workbook", Sink: workbook},
		},
		Observer: m,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	query := application.Query{
		Accounts: splitAccounts(flags.accounts),
		From:     flags.from,
		To:       flags.to,
	}
	logger.Info().Str("event", "run_requested").Str("provider", string(provider)).
		Str("from", query.From).Str("to", query.To).Int("accounts", len(query.Accounts)).
		Bool("reprocess", run.ForceReprocess()).
		Msg("run requested")

	result, runErr := pipeline.Run(ctx, query)
	m.ObserveRun(result.FinishedAt.Sub(result.StartedAt))

	summary := publishRun(cfg, logger, result, runErr)
	if summary.Meta == nil {
		summary.Meta = make(map[string]string)
	}
	summary.Meta["csv"] = csvSink.Path()
	notifyRun(ctx, cfg, logger, m, summary)

	return runErr
}

// openLedgerStore returns the configured store and its release func.
func openLedgerStore(ctx context.Context, cfg config.Config) (ledger.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Ledger.Backend {
	case config.LedgerCSV:
		store, err := csvfile.NewStore(cfg.Ledger.Dir)
		return store, noop, err
	case config.LedgerPostgres, config.LedgerSQLite:
		dialect := sqlstore.DialectPostgres
		if cfg.Ledger.Backend == config.LedgerSQLite {
			dialect = sqlstore.DialectSQLite
		}
		db, err := sqlstore.Open(ctx, dialect, cfg.Ledger.DSN)
		if err != nil {
			return nil, noop, err
		}
		if err := sqlstore.Migrate(ctx, db, dialect); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		store, err := sqlstore.NewStore(db, dialect)
		if err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return store, db.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

// publishRun writes the run document and the PDF report. Failures are
// logged; the run outcome stands.
func publishRun(cfg config.Config, logger zerolog.Logger, result application.RunResult, runErr error) notify.RunSummary {
	doc := export.NewRunDocument(result, runErr)
	summary := notify.RunSummary{
		RunID:        result.RunID,
		Provider:     string(result.Provider),
		Status:       doc.Status,
		From:         result.Query.From,
		To:           result.Query.To,
		Processed:    result.Processed,
		Failed:       result.Failed,
		Skipped:      result.Skipped,
		Placeholders: result.Placeholders,
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}

	writer, err := export.NewResultsWriter(cfg.ReportDir)
	if err == nil {
		var path string
		path, err = writer.Write(doc)
		if err == nil {
			summary.Meta = map[string]string{"results": path}
		}
	}
	if err != nil {
		logger.Warn().Err(err).Str("event", "results_write_failed").Str("run_id", result.RunID).Msg("run results not written")
	}

	reportPath, err := export.WriteRunReportPDF(cfg.ReportDir, result)
	if err != nil {
		logger.Warn().Err(err).Str("event", "report_write_failed").Str("run_id", result.RunID).Msg("run report not written")
	} else {
		summary.ReportPath = reportPath
	}
	return summary
}

func notifyRun(ctx context.Context, cfg config.Config, logger zerolog.Logger, m *metrics.Metrics, summary notify.RunSummary) {
	notifiers := []notify.Notifier{notify.NewLogNotifier(logger)}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.WebhookURL))
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := notify.NewMultiNotifier(notifiers...).Notify(ctx, summary); err != nil {
		m.ObserveNotification("failed")
		logger.Warn().Err(err).Str("event", "notify_failed").Str("run_id", summary.RunID).Msg("run notification failed")
		return
	}
	m.ObserveNotification("sent")
}

func cleanCommand(cfg config.Config, logger zerolog.Logger, args []string) error {
	var filter housekeeping.Filter
	fs := flag.NewFlagSet("clean", flag.ContinueOnError)
	fs.StringVar(&filter.Provider, "provider", housekeeping.All, "endesa, enel or all")
	fs.StringVar(&filter.Type, "type", housekeeping.All, "pdf, xml, csv or all")
	fs.StringVar(&filter.Date, "date", "", "DD/MM/YYYY, MM/YYYY or YYYY")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cleaner, err := housekeeping.NewCleaner(cfg.DataRoot, logger)
	if err != nil {
		return err
	}
	result, err := cleaner.Clean(filter)
	logger.Info().Str("event", "cleanup_finished").Int("deleted", result.Deleted).Msg("cleanup finished")
	return err
}
