package application_test

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/application"
	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
)

type discrepancyCounter struct {
	count int
}

func (c *discrepancyCounter) ObserveDiscrepancy(string) { c.count++ }

func newEndesaInvoice(t *testing.T) *billing.Invoice {
	t.Helper()
	inv, err := billing.NewInvoice(billing.ProviderEndesa, "ES0031405000000001AA")
	if err != nil {
		t.Fatalf("new invoice: %v", err)
	}
	inv.InvoiceNumber = billing.Some("PMS501N0012345")
	return inv
}

func TestReconcileFillsUnsetFields(t *testing.T) {
	inv := newEndesaInvoice(t)
	result := application.NewReconciler(zerolog.Nop(), nil).Reconcile(inv, map[string]any{
		"potencia_p1":          10.0,
		"tarifa":               "6.1TD",
		"num_dias":             float64(30),
		"importe_consumo_p2":   "1.234,56 €",
		"fecha_fin_periodo":    "31/10/2025",
		"direccion_suministro": "null",
		"importe_reactiva":     nil,
		"contrato":             "",
		"no_such_field":        "x",
	})

	if inv.Power[0].Or(0) != 10 {
		t.Fatalf("expected potencia_p1 10, got %v", inv.Power[0])
	}
	if got := inv.Tariff.Or(""); got != "6.1TD" {
		t.Fatalf("expected tariff, got %q", got)
	}
	if got := inv.BilledDays.Or(0); got != 30 {
		t.Fatalf("expected 30 days, got %d", got)
	}
	if got := inv.ConsumptionCharge[1].Or(0); got != 1234.56 {
		t.Fatalf("expected consumption charge 1234.56, got %v", got)
	}
	if inv.SupplyAddress.IsSet() || inv.ReactiveEnergy.IsSet() || inv.ContractID.IsSet() {
		t.Fatalf("null and empty values must be skipped")
	}
	if got := inv.BilledMonth.Or(""); got != "OCTUBRE" {
		t.Fatalf("expected billed month OCTUBRE, got %q", got)
	}
	if len(result.Applied) != 5 {
		t.Fatalf("expected 5 applied fields, got %v", result.Applied)
	}
	if len(result.Unknown) != 1 || result.Unknown[0] != "no_such_field" {
		t.Fatalf("unexpected unknown fields %v", result.Unknown)
	}
}

func TestReconcileNeverOverwritesSetFields(t *testing.T) {
	inv := newEndesaInvoice(t)
	inv.Power[0] = billing.Some(10.0)
	inv.Power[1] = billing.Some(10.0)
	inv.Power[2] = billing.Some(10.0)
	inv.TotalAmount = billing.Some(0.0)

	counter := &discrepancyCounter{}
	result := application.NewReconciler(zerolog.Nop(), counter).Reconcile(inv, map[string]any{
		"potencia_p1":   25.0,
		"potencia_p2":   "10",
		"importe_total": 99.0,
	})

	if got := inv.Power[0].Or(0); got != 10 {
		t.Fatalf("set value overwritten: %v", got)
	}
	if got := inv.TotalAmount.Or(-1); got != 0 {
		t.Fatalf("explicit zero overwritten: %v", got)
	}
	if len(result.Discrepancies) != 2 || counter.count != 2 {
		t.Fatalf("expected 2 discrepancies, got %v (observed %d)", result.Discrepancies, counter.count)
	}
	first := result.Discrepancies[0]
	if first.Field != "importe_total" || first.Current != 0.0 || first.Extracted != 99.0 {
		t.Fatalf("unexpected discrepancy %+v", first)
	}
	if result.Discrepancies[1].Field != "potencia_p1" {
		t.Fatalf("unexpected discrepancy order %+v", result.Discrepancies)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	fields := map[string]any{
		"potencia_p1":          12.5,
		"potencia_p3":          "7,25",
		"tarifa":               "3.0TD",
		"fecha_fin_periodo":    "30-09-2025",
		"fecha_inicio_periodo": "01/09/2025",
		"importe_bono_social":  "NULL",
		"num_dias":             29,
	}
	reconciler := application.NewReconciler(zerolog.Nop(), nil)

	once := newEndesaInvoice(t)
	once.Power[0] = billing.Some(11.0)
	reconciler.Reconcile(once, fields)

	copied := *once
	twice := &copied
	second := reconciler.Reconcile(twice, fields)
	if *once != *twice {
		t.Fatalf("second reconcile changed the record:\n%+v\n%+v", once, twice)
	}
	if len(second.Applied) != 0 {
		t.Fatalf("second reconcile applied %v", second.Applied)
	}
}

func TestReconcileLeavesBilledMonthOnBadDate(t *testing.T) {
	inv := newEndesaInvoice(t)
	inv.BilledMonth = billing.Some("AGOSTO")
	application.NewReconciler(zerolog.Nop(), nil).Reconcile(inv, map[string]any{"fecha_fin_periodo": "2025/10/31"})
	if got := inv.BilledMonth.Or(""); got != "AGOSTO" {
		t.Fatalf("billed month changed to %q", got)
	}
}

func TestReconcileRejectsInvalidValues(t *testing.T) {
	inv := newEndesaInvoice(t)
	result := application.NewReconciler(zerolog.Nop(), nil).Reconcile(inv, map[string]any{
		"potencia_p1": "sin datos",
		"num_dias":    12.5,
	})
	if len(result.Invalid) != 2 {
		t.Fatalf("expected 2 invalid values, got %v", result.Invalid)
	}
	if inv.Power[0].IsSet() || inv.BilledDays.IsSet() {
		t.Fatalf("invalid values must not be stored")
	}
}
