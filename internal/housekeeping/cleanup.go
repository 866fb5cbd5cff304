// Package housekeeping removes downloaded files from the data root.
package housekeeping

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
)

// All selects every provider or file type.
const All = "all"

// FileTypes are the download folders under each provider directory.
var FileTypes = []string{"pdf", "xml", "csv"}

var (
	// ErrInvalidFilter is returned for unknown provider, type or date filters.
	ErrInvalidFilter = errors.New("housekeeping: invalid filter")
)

// Filter narrows a cleanup. Empty fields mean all.
type Filter struct {
	Provider string
	Type     string
	// Date is DD/MM/YYYY, MM/YYYY or YYYY, matched against the file mtime.
	Date string
}

// CleanupResult lists what a cleanup removed.
type CleanupResult struct {
	Deleted int
	Paths   []string
}

type dateMatcher func(time.Time) bool

// Cleaner deletes files under <root>/<provider>/<type>.
type Cleaner struct {
	root     string
	location *time.Location
	logger   zerolog.Logger
}

// NewCleaner constructs a Cleaner. Dates are compared in local time.
func NewCleaner(root string, logger zerolog.Logger) (*Cleaner, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("housekeeping: empty root")
	}
	return &Cleaner{root: root, location: time.Local, logger: logger.With().Str("component", "housekeeping").Logger()}, nil
}

// Clean removes the regular files matching filter. Failures on single files
// do not stop the cleanup; they are returned together.
func (c *Cleaner) Clean(filter Filter) (CleanupResult, error) {
	var result CleanupResult
	providers, err := providersOf(filter.Provider)
	if err != nil {
		return result, err
	}
	types, err := typesOf(filter.Type)
	if err != nil {
		return result, err
	}
	match, err := c.dateMatcher(filter.Date)
	if err != nil {
		return result, err
	}

	var errs error
	for _, provider := range providers {
		for _, kind := range types {
			dir := filepath.Join(c.root, provider, kind)
			entries, err := os.ReadDir(dir)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			for _, entry := range entries {
				if !entry.Type().IsRegular() {
					continue
				}
				info, err := entry.Info()
				if err != nil {
					errs = multierr.Append(errs, err)
					continue
				}
				if !match(info.ModTime()) {
					continue
				}
				path := filepath.Join(dir, entry.Name())
				if err := os.Remove(path); err != nil {
					errs = multierr.Append(errs, err)
					continue
				}
				result.Deleted++
				result.Paths = append(result.Paths, path)
			}
		}
	}

	c.logger.Info().
		Str("event", "cleanup_done").
		Str("provider", filter.Provider).
		Str("type", filter.Type).
		Str("date", filter.Date).
		Int("deleted", result.Deleted).
		Msg("temporary files removed")
	return result, errs
}

func providersOf(value string) ([]string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || value == All {
		out := make([]string, 0, len(billing.Providers()))
		for _, p := range billing.Providers() {
			out = append(out, string(p))
		}
		return out, nil
	}
	provider, err := billing.ParseProvider(value)
	if err != nil {
		return nil, fmt.Errorf("%w: provider %q", ErrInvalidFilter, value)
	}
	return []string{string(provider)}, nil
}

func typesOf(value string) ([]string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || value == All {
		return FileTypes, nil
	}
	for _, kind := range FileTypes {
		if kind == value {
			return []string{kind}, nil
		}
	}
	return nil, fmt.Errorf("%w: type %q", ErrInvalidFilter, value)
}

func (c *Cleaner) dateMatcher(value string) (dateMatcher, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return func(time.Time) bool { return true }, nil
	}
	var layout string
	switch strings.Count(value, "/") {
	case 2:
		layout = "02/01/2006"
	case 1:
		layout = "01/2006"
	case 0:
		layout = "2006"
	default:
		return nil, fmt.Errorf("%w: date %q", ErrInvalidFilter, value)
	}
	if _, err := time.Parse(layout, value); err != nil {
		return nil, fmt.Errorf("%w: date %q", ErrInvalidFilter, value)
	}
	return func(mtime time.Time) bool {
		return mtime.In(c.location).Format(layout) == value
	}, nil
}
