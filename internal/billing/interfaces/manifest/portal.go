// Package manifest implements the portal collaborator on top of a table
// exported from the provider portal, one semicolon separated row per invoice.
package manifest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/application"
	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/normalize"
)

const (
	columnPDF      = "pdf_path"
	columnXML      = "xml_path"
	columnPDFError = "pdf_error"
	columnXMLError = "xml_error"
	columnIssued   = "fecha_emision"
	columnAccount  = "cup"
	columnNumber   = "numero_factura"
)

// ErrNotLoggedIn is returned by Search before a successful Login.
var ErrNotLoggedIn = errors.New("manifest: not logged in")

// Portal serves rows from a manifest file.
type Portal struct {
	path     string
	logger   zerolog.Logger
	rows     []map[string]string
	root     string
	provider billing.Provider
}

// Option configures a Portal.
type Option func(*Portal)

// WithDownloadLayout resolves rows without a document path to
// <root>/<provider>/<kind>/<DocumentFileName>, where the downloader saves them.
func WithDownloadLayout(root string, provider billing.Provider) Option {
	return func(p *Portal) {
		p.root = root
		p.provider = provider
	}
}

// NewPortal constructs a Portal reading path.
func NewPortal(path string, logger zerolog.Logger, opts ...Option) (*Portal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("manifest: empty path")
	}
	p := &Portal{path: path, logger: logger.With().Str("component", "manifest_portal").Logger()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Login reads the manifest.
func (p *Portal) Login(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	file, err := os.Open(p.path)
	if err != nil {
		return fmt.Errorf("manifest: open: %w", err)
	}
	defer file.Close()

	rows, err := readRows(file)
	if err != nil {
		return err
	}
	p.rows = rows
	p.logger.Info().Str("event", "manifest_loaded").Str("path", p.path).Int("rows", len(rows)).Msg("manifest loaded")
	return nil
}

// Search returns the rows of the requested accounts issued within the period.
// Blank bounds are open.
func (p *Portal) Search(ctx context.Context, query application.Query) ([]application.Row, error) {
	if p.rows == nil {
		return nil, ErrNotLoggedIn
	}
	from, err := bound(query.From)
	if err != nil {
		return nil, err
	}
	to, err := bound(query.To)
	if err != nil {
		return nil, err
	}
	accounts := make(map[string]bool, len(query.Accounts))
	for _, account := range query.Accounts {
		accounts[strings.TrimSpace(account)] = true
	}

	var out []application.Row
	for _, fields := range p.rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(accounts) > 0 && !accounts[fields[columnAccount]] {
			continue
		}
		if !within(fields[columnIssued], from, to) {
			continue
		}
		out = append(out, p.row(fields))
	}
	return out, nil
}

// Close releases nothing; rows stay cached until the next Login.
func (p *Portal) Close() error {
	return nil
}

func (p *Portal) row(fields map[string]string) application.Row {
	row := application.Row{
		Fields:           make(map[string]string, len(fields)),
		Documents:        make(map[billing.DocumentKind]string),
		DownloadFailures: make(map[billing.DocumentKind]string),
	}
	for k, v := range fields {
		switch k {
		case columnPDF, columnXML, columnPDFError, columnXMLError:
		default:
			row.Fields[k] = v
		}
	}
	p.attach(row, fields, billing.DocumentPDF, fields[columnPDF], fields[columnPDFError])
	p.attach(row, fields, billing.DocumentXML, fields[columnXML], fields[columnXMLError])
	return row
}

func (p *Portal) attach(row application.Row, fields map[string]string, kind billing.DocumentKind, path, failure string) {
	if failure != "" {
		row.DownloadFailures[kind] = failure
		return
	}
	if path == "" {
		p.attachDownloaded(row, fields, kind)
		return
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(p.path), path)
	}
	if _, err := os.Stat(path); err != nil {
		row.DownloadFailures[kind] = fmt.Sprintf("fichero no disponible: %s", filepath.Base(path))
		return
	}
	row.Documents[kind] = path
}

// attachDownloaded picks up a document saved under the download layout. A
// missing file means the portal offered none.
func (p *Portal) attachDownloaded(row application.Row, fields map[string]string, kind billing.DocumentKind) {
	if p.root == "" || fields[columnAccount] == "" || fields[columnNumber] == "" {
		return
	}
	name := billing.DocumentFileName(p.provider, fields[columnIssued], fields[columnAccount], fields[columnNumber], kind)
	path := filepath.Join(p.root, string(p.provider), string(kind), name)
	if _, err := os.Stat(path); err == nil {
		row.Documents[kind] = path
	}
}

func readRows(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []map[string]string{}, nil
		}
		return nil, fmt.Errorf("manifest: header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")))
	}

	rows := []map[string]string{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("manifest: row %d: %w", len(rows)+2, err)
		}
		fields := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(record) {
				fields[name] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, fields)
	}
	return rows, nil
}

func bound(text string) (time.Time, error) {
	if strings.TrimSpace(text) == "" {
		return time.Time{}, nil
	}
	parsed, err := normalize.ParseDayMonthYear(text)
	if err != nil {
		return time.Time{}, fmt.Errorf("manifest: period bound %q: %w", text, err)
	}
	return parsed, nil
}

// within keeps rows with an unparseable issue date.
func within(issued string, from, to time.Time) bool {
	date, err := normalize.ParseDayMonthYear(issued)
	if err != nil {
		return true
	}
	if !from.IsZero() && date.Before(from) {
		return false
	}
	if !to.IsZero() && date.After(to) {
		return false
	}
	return true
}
