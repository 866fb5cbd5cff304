package application

import (
	"errors"
	"strings"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/normalize"
)

const (
	rowAccount  = "cup"
	rowSelector = "download_selector"
	rowTotal    = "importe_total"
)

var errRowWithoutAccount = errors.New("pipeline: row without cup")

var rowColumns = map[billing.Provider][]string{
	billing.ProviderEndesa: {
		"fecha_emision", "numero_factura", "fecha_inicio_periodo", "fecha_fin_periodo",
		"contrato", "secuencial", "estado_factura", "fraccionamiento", "tipo_factura",
	},
	billing.ProviderEnel: {
		"numero_factura", "fecha_emision", "estado_factura", "tipo_factura",
	},
}

// InvoiceFromRow builds the partial record of a table row. fallbackAccount is
// used when the row carries no cup.
func InvoiceFromRow(provider billing.Provider, row Row, fallbackAccount string) (*billing.Invoice, error) {
	schema, err := billing.SchemaFor(provider)
	if err != nil {
		return nil, err
	}
	account := strings.TrimSpace(row.Fields[rowAccount])
	if account == "" {
		account = strings.TrimSpace(fallbackAccount)
	}
	if account == "" {
		return nil, errRowWithoutAccount
	}
	inv, err := billing.NewInvoice(provider, account)
	if err != nil {
		return nil, err
	}

	for _, name := range rowColumns[provider] {
		value := strings.TrimSpace(row.Fields[name])
		if value == "" {
			continue
		}
		field, ok := schema.Field(name)
		if !ok {
			continue
		}
		if err := field.Set(inv, value); err != nil {
			return nil, err
		}
	}
	if raw, ok := row.Fields[rowTotal]; ok && strings.TrimSpace(raw) != "" {
		inv.TotalAmount = billing.Some(parseTotal(provider, raw))
	}
	inv.DownloadSelector = strings.TrimSpace(row.Fields[rowSelector])
	if inv.DownloadSelector == "" && provider == billing.ProviderEnel {
		inv.DownloadSelector = inv.Number()
	}
	return inv, nil
}

func parseTotal(provider billing.Provider, raw string) float64 {
	if provider == billing.ProviderEnel {
		return normalize.ParseProviderAmount(raw)
	}
	return normalize.ParseAmount(raw)
}
