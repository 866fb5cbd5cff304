package extraction

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
)

const retailerInvoice = `<?xml version="1.0" encoding="ISO-8859-1"?>
<fe:Facturae xmlns:fe="http://www.facturae.es/Facturae/2009/v3.2/Facturae" xmlns:ext="urn:endesa:ext">
  <Invoices>
    <Invoice>
      <InvoiceIssueData>
        <IssueDate>2025-11-04</IssueDate>
      </InvoiceIssueData>
      <InvoiceTotals>
        <TotalGrossAmountBeforeTaxes>120.50</TotalGrossAmountBeforeTaxes>
        <InvoiceTotal>145.81</InvoiceTotal>
      </InvoiceTotals>
      <Items>
        <InvoiceLine>
          <ItemDescription>Pot. P1</ItemDescription>
          <TotalCost>10.25</TotalCost>
          <TransactionDate>2025-10-31</TransactionDate>
        </InvoiceLine>
        <InvoiceLine>
          <ItemDescription>consumo p2</ItemDescription>
          <TotalCost>33.10</TotalCost>
        </InvoiceLine>
        <InvoiceLine>
          <ItemDescription>Alquiler del contador</ItemDescription>
          <Quantity>30.0</Quantity>
          <TotalCost>0.81</TotalCost>
        </InvoiceLine>
        <InvoiceLine>
          <ItemDescription>Impuesto Electricidad</ItemDescription>
          <TotalCost>5.11</TotalCost>
        </InvoiceLine>
      </Items>
      <PaymentDetails>
        <Installment>
          <InstallmentDueDate>2025-11-20</InstallmentDueDate>
        </Installment>
      </PaymentDetails>
      <AdditionalData>
        <ext:DatosSuministro>
          <ext:CodigoTarifa>2.0TD</ext:CodigoTarifa>
          <ext:Direccion>Calle Mayor 1</ext:Direccion>
          <ext:CodigoPostal>28001</ext:CodigoPostal>
          <ext:Poblacion>Madrid</ext:Poblacion>
          <ext:Provincia>Madrid</ext:Provincia>
        </ext:DatosSuministro>
        <ext:Contador>
          <ext:Lectura>
            <ext:CodigoDH>AEA1</ext:CodigoDH>
            <ext:ConsumoCalculado>210</ext:ConsumoCalculado>
          </ext:Lectura>
          <ext:Lectura>
            <ext:CodigoDH>AEA3</ext:CodigoDH>
            <ext:ConsumoCalculado>95.5</ext:ConsumoCalculado>
          </ext:Lectura>
        </ext:Contador>
      </AdditionalData>
    </Invoice>
  </Invoices>
</fe:Facturae>
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func endesaSchema(t *testing.T) billing.Schema {
	t.Helper()
	schema, err := billing.SchemaFor(billing.ProviderEndesa)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return schema
}

func TestXMLExtractorMapsRetailerInvoice(t *testing.T) {
	path := writeFile(t, "invoice.xml", retailerInvoice)
	extractor := NewXMLExtractor(zerolog.Nop())

	fields, err := extractor.Extract(context.Background(), billing.Document{Kind: billing.DocumentXML, Path: path}, endesaSchema(t))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	want := map[string]any{
		"importe_base_imponible":     120.50,
		"importe_facturado":          145.81,
		"tarifa":                     "2.0TD",
		"direccion_suministro":       "Calle Mayor 1, 28001 Madrid, Madrid",
		"mes_facturado":              "OCTUBRE",
		"fecha_de_factura":           "04/11/2025",
		"fecha_de_vencimiento":       "20/11/2025",
		"potencia_p1":                10.25,
		"importe_consumo_p2":         33.10,
		"importe_alquiler_equipos":   0.81,
		"importe_impuesto_electrico": 5.11,
		"num_dias":                   30,
		"consumo_kw_p1":              210.0,
		"consumo_kw_p3":              95.5,
	}
	for name, value := range want {
		if fields[name] != value {
			t.Fatalf("%s = %#v, want %#v", name, fields[name], value)
		}
	}
	if _, ok := fields["consumo_kw_p2"]; ok {
		t.Fatalf("expected no consumo_kw_p2 without an AEA2 reading")
	}
	if _, ok := fields["importe_bono_social"]; ok {
		t.Fatalf("expected absent concept lines to stay unset")
	}
}

func TestXMLExtractorRequiresTaxableBase(t *testing.T) {
	doc := `<Facturae><TotalGrossAmountBeforeTaxes>0.00</TotalGrossAmountBeforeTaxes></Facturae>`
	path := writeFile(t, "zero.xml", doc)
	extractor := NewXMLExtractor(zerolog.Nop())

	_, err := extractor.Extract(context.Background(), billing.Document{Kind: billing.DocumentXML, Path: path}, endesaSchema(t))
	if !errors.Is(err, ErrIncompleteDocument) {
		t.Fatalf("expected ErrIncompleteDocument, got %v", err)
	}
}

func TestXMLExtractorRejectsPDF(t *testing.T) {
	extractor := NewXMLExtractor(zerolog.Nop())
	_, err := extractor.Extract(context.Background(), billing.Document{Kind: billing.DocumentPDF, Path: "x.pdf"}, endesaSchema(t))
	if !errors.Is(err, ErrUnsupportedDocument) {
		t.Fatalf("expected ErrUnsupportedDocument, got %v", err)
	}
}
