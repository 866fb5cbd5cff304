package extraction

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/rs/zerolog"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/normalize"
)

// concept maps an invoice line description to a field.
type concept struct {
	description string
	field       string
}

var retailerConcepts = buildConcepts()

func buildConcepts() []concept {
	concepts := []concept{
		{"Impuesto Electricidad", "importe_impuesto_electrico"},
		{"Alquiler del contador", "importe_alquiler_equipos"},
		{"Financiación Bono Social", "importe_bono_social"},
		{"Complemento por Energía Reactiva", "importe_reactiva"},
		{"Regularización Fondo Nacional Eficiencia Energía", "importe_regularizacion_eficiencia_energetica"},
	}
	for band := 1; band <= billing.Bands; band++ {
		concepts = append(concepts,
			concept{fmt.Sprintf("Pot. P%d", band), fmt.Sprintf("potencia_p%d", band)},
			concept{fmt.Sprintf("Consumo P%d", band), fmt.Sprintf("importe_consumo_p%d", band)},
			concept{fmt.Sprintf("Energia precio indexado P%d", band), fmt.Sprintf("energia_precio_indexado_p%d", band)},
			concept{fmt.Sprintf("Exceso Pot. P%d", band), fmt.Sprintf("importe_exceso_potencia_p%d", band)},
		)
	}
	return concepts
}

// XMLExtractor reads the structured e-invoice of the retailer. Element
// namespaces are ignored.
type XMLExtractor struct {
	logger zerolog.Logger
}

// NewXMLExtractor constructs an XMLExtractor.
func NewXMLExtractor(logger zerolog.Logger) *XMLExtractor {
	return &XMLExtractor{logger: logger.With().Str("component", "xml_extractor").Logger()}
}

// Extract returns the field mapping found in doc.
func (x *XMLExtractor) Extract(ctx context.Context, doc billing.Document, schema billing.Schema) (map[string]any, error) {
	if doc.Kind != billing.DocumentXML {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocument, doc.Kind)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(doc.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	root, err := xmlquery.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("extraction: parse xml: %w", err)
	}

	fields := make(map[string]any)
	base, ok := amountOf(root, "TotalGrossAmountBeforeTaxes")
	if !ok || base == 0 {
		return nil, fmt.Errorf("%w: TotalGrossAmountBeforeTaxes missing or zero", ErrIncompleteDocument)
	}
	fields["importe_base_imponible"] = base
	if total, ok := amountOf(root, "InvoiceTotal"); ok {
		fields["importe_facturado"] = total
	}

	if tariff := textOf(root, "CodigoTarifa"); tariff != "" {
		fields["tarifa"] = tariff
	}
	if address := supplyAddress(root); address != "" {
		fields["direccion_suministro"] = address
	}
	if transaction, ok := normalize.ParseDate(textOf(root, "TransactionDate"), normalize.ISODate, normalize.DayMonthYear); ok {
		if month, err := normalize.BilledMonth(transaction); err == nil {
			fields["mes_facturado"] = month
		}
	}
	if issued, ok := normalize.ParseDate(textOf(root, "IssueDate"), normalize.ISODate, normalize.DayMonthYear); ok {
		fields[invoiceDateField(schema)] = issued
	}
	if due, ok := normalize.ParseDate(textOf(root, "InstallmentDueDate"), normalize.ISODate, normalize.DayMonthYear); ok {
		fields["fecha_de_vencimiento"] = due
	}

	for _, c := range retailerConcepts {
		line := lineOf(root, c.description)
		if line == nil {
			continue
		}
		if cost, ok := amountOf(line, "TotalCost"); ok {
			fields[c.field] = cost
		}
	}
	if rental := lineOf(root, "Alquiler del contador"); rental != nil {
		if quantity, ok := amountOf(rental, "Quantity"); ok {
			fields["num_dias"] = int(quantity)
		}
	}
	for band := 1; band <= billing.Bands; band++ {
		if kwh, ok := meterConsumption(root, fmt.Sprintf("AEA%d", band)); ok {
			fields[fmt.Sprintf("consumo_kw_p%d", band)] = kwh
		}
	}

	x.logger.Debug().Str("event", "xml_extracted").Str("path", doc.Path).Int("fields", len(fields)).Msg("xml parsed")
	return fields, nil
}

func invoiceDateField(schema billing.Schema) string {
	if _, ok := schema.Field("fecha_de_factura"); ok {
		return "fecha_de_factura"
	}
	return "fecha_factura"
}

func localName(name string) string {
	return fmt.Sprintf(".//*[local-name()='%s']", name)
}

func textOf(node *xmlquery.Node, name string) string {
	found, err := xmlquery.Query(node, localName(name))
	if err != nil || found == nil {
		return ""
	}
	return strings.TrimSpace(found.InnerText())
}

func amountOf(node *xmlquery.Node, name string) (float64, bool) {
	text := textOf(node, name)
	if text == "" {
		return 0, false
	}
	value, err := normalize.Amount(text)
	if err != nil {
		return 0, false
	}
	return value, true
}

// lineOf returns the parent of the first ItemDescription equal to description.
func lineOf(root *xmlquery.Node, description string) *xmlquery.Node {
	nodes, err := xmlquery.QueryAll(root, localName("ItemDescription"))
	if err != nil {
		return nil
	}
	for _, node := range nodes {
		if strings.EqualFold(strings.TrimSpace(node.InnerText()), description) && node.Parent != nil {
			return node.Parent
		}
	}
	return nil
}

func meterConsumption(root *xmlquery.Node, code string) (float64, bool) {
	nodes, err := xmlquery.QueryAll(root, localName("CodigoDH"))
	if err != nil {
		return 0, false
	}
	for _, node := range nodes {
		if strings.TrimSpace(node.InnerText()) != code || node.Parent == nil {
			continue
		}
		if value, ok := amountOf(node.Parent, "ConsumoCalculado"); ok {
			return value, true
		}
	}
	return 0, false
}

func supplyAddress(root *xmlquery.Node) string {
	street := textOf(root, "Direccion")
	postcode := textOf(root, "CodigoPostal")
	town := textOf(root, "Poblacion")
	province := textOf(root, "Provincia")

	parts := []string{}
	if street != "" {
		parts = append(parts, street)
	}
	if locality := strings.TrimSpace(postcode + " " + town); locality != "" {
		parts = append(parts, locality)
	}
	if province != "" {
		parts = append(parts, province)
	}
	return strings.Join(parts, ", ")
}
