package application

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/normalize"
)

// Discrepancy is an extracted value that disagrees with a value already set.
type Discrepancy struct {
	Field     string
	Current   any
	Extracted any
}

// ReconcileResult summarizes one merge.
type ReconcileResult struct {
	Applied       []string
	Discrepancies []Discrepancy
	Unknown       []string
	Invalid       []string
}

// DiscrepancyObserver counts conflicting values.
type DiscrepancyObserver interface {
	ObserveDiscrepancy(provider string)
}

// Reconciler merges secondary extraction output into an invoice. It only
// fills unset fields; set fields keep their value and conflicts are reported.
type Reconciler struct {
	logger   zerolog.Logger
	observer DiscrepancyObserver
}

// NewReconciler constructs a Reconciler. observer may be nil.
func NewReconciler(logger zerolog.Logger, observer DiscrepancyObserver) *Reconciler {
	return &Reconciler{
		logger:   logger.With().Str("component", "reconciler").Logger(),
		observer: observer,
	}
}

// Reconcile applies fields to inv. Keys are visited in sorted order so the
// outcome does not depend on map iteration.
func (r *Reconciler) Reconcile(inv *billing.Invoice, fields map[string]any) ReconcileResult {
	var result ReconcileResult
	schema, err := billing.SchemaFor(inv.Provider)
	if err != nil {
		r.logger.Error().Err(err).Str("cup", inv.AccountCode()).Msg("reconcile without schema")
		return result
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw := fields[name]
		if isBlank(raw) {
			continue
		}
		field, ok := schema.Field(name)
		if !ok {
			result.Unknown = append(result.Unknown, name)
			continue
		}
		extracted, err := field.Coerce(raw)
		if err != nil {
			result.Invalid = append(result.Invalid, name)
			r.logger.Warn().Err(err).Str("event", "reconcile_invalid_value").
				Str("cup", inv.AccountCode()).Str("invoice", inv.Number()).Str("field", name).Msg("extracted value ignored")
			continue
		}

		current, set := field.Value(inv)
		if !set {
			if err := field.Set(inv, extracted); err != nil {
				result.Invalid = append(result.Invalid, name)
				continue
			}
			result.Applied = append(result.Applied, name)
			continue
		}
		if current != extracted {
			result.Discrepancies = append(result.Discrepancies, Discrepancy{Field: name, Current: current, Extracted: extracted})
			r.logger.Warn().Str("event", "reconcile_discrepancy").Str("cup", inv.AccountCode()).
				Str("invoice", inv.Number()).Str("field", name).
				Interface("current", current).Interface("extracted", extracted).Msg("value kept")
			if r.observer != nil {
				r.observer.ObserveDiscrepancy(string(inv.Provider))
			}
		}
	}

	r.deriveBilledMonth(inv)
	return result
}

func (r *Reconciler) deriveBilledMonth(inv *billing.Invoice) {
	periodEnd, ok := inv.PeriodEnd.Get()
	if !ok || periodEnd == billing.NotAvailable {
		return
	}
	month, err := normalize.BilledMonth(periodEnd)
	if err != nil {
		r.logger.Warn().Str("event", "billed_month_unparsed").Str("cup", inv.AccountCode()).
			Str("invoice", inv.Number()).Str("period_end", periodEnd).Msg("billed month not derived")
		return
	}
	inv.BilledMonth = billing.Some(month)
}

func isBlank(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		trimmed := strings.TrimSpace(v)
		return trimmed == "" || strings.EqualFold(trimmed, "null")
	}
	return false
}
