package application

import (
	"errors"
	"testing"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
)

func TestInvoiceFromRowRetailer(t *testing.T) {
	inv, err := InvoiceFromRow(billing.ProviderEndesa, Row{Fields: map[string]string{
		"cup":            " ES0031 ",
		"numero_factura": "F-1",
		"contrato":       "",
		"importe_total":  "1.234,56 €",
		"secuencial":     "2",
	}}, "")
	if err != nil {
		t.Fatalf("row: %v", err)
	}
	if inv.AccountCode() != "ES0031" || inv.Number() != "F-1" {
		t.Fatalf("identity = %s/%s", inv.AccountCode(), inv.Number())
	}
	if inv.ContractID.IsSet() {
		t.Fatalf("blank cells must stay unset")
	}
	if total, _ := inv.TotalAmount.Get(); total != 1234.56 {
		t.Fatalf("total = %v", total)
	}
	if seq, _ := inv.Sequence.Get(); seq != "2" {
		t.Fatalf("secuencial = %q", seq)
	}
}

func TestInvoiceFromRowAccountFallback(t *testing.T) {
	inv, err := InvoiceFromRow(billing.ProviderEnel, Row{Fields: map[string]string{"numero_factura": "E-1"}}, "ES0099")
	if err != nil {
		t.Fatalf("row: %v", err)
	}
	if inv.AccountCode() != "ES0099" {
		t.Fatalf("account = %q", inv.AccountCode())
	}
	if _, err := InvoiceFromRow(billing.ProviderEnel, Row{}, ""); !errors.Is(err, errRowWithoutAccount) {
		t.Fatalf("expected errRowWithoutAccount, got %v", err)
	}
}
