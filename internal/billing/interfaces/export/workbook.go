package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
)

// WorkbookHeader is the business layout of every account sheet.
var WorkbookHeader = []string{
	"MES FACTURADO", "TARIFA", "PG", "CUP", "NUMERO DE FACTURA", "DIRECCIÓN SUMINISTRO",
	"TIPO DE TIENDA", "POTENCIA P1", "POTENCIA P2", "POTENCIA P3", "POTENCIA P4",
	"POTENCIA P5", "POTENCIA P6", "Nº DÍAS", "IMPORTE POTENCIA", "CONSUMO KW P1",
	"CONSUMO KW P2", "CONSUMO KW P3", "CONSUMO KW P4", "CONSUMO KW P5", "CONSUMO KW P6",
	"KW TOTALES", "KW CURVA", "KW GESTINEL", "IMPORTE CONSUMO", "IMPORTE ATR", "BONO SOCIAL",
	"IMPUESTO ELECTRICO", "ALQUILER DE EQUIPOS", "OTROS CONCEPTOS", "IMPORTE POTENCIA CONTRATADA",
	"DIFERENCIA POTENCIA CONTRATADA Y FACTURADA", "EXCESO DE POTENCIA", "IMPORTE DE REACTIVA",
	"PRECIO MEDIO", "PRECIO CALCULADO", "DIFERENCIA DE PRECIO", "IMPUESTO ELECTRICO CALCULADO",
	"DIFERENCIA DE IE", "BASE IMPONIBLE", "IMPORTE TOTAL CALCULADO",
	"DIFERENCIA ENTRE IMPORTE TOTAL Y BASE IMPONIBLE", "IMPORTE FACTURADO", "FECHA DE FACTURA",
	"FECHA DE VENCIMIENTO", "FECHA DE PAGO EN BANCO", "FECHA DE DEVOLUCIÓN", "ACUERDO",
	"VENCIMIENTO DEL ACUERDO",
}

// invoiceNumberColumn is column E, the upsert key.
const invoiceNumberColumn = 4

var (
	currencyColumns = []int{7, 8, 9, 10, 11, 12, 14, 24, 25, 26, 27, 28, 29, 32, 33, 39, 42}
	energyColumns   = []int{15, 16, 17, 18, 19, 20, 21}
)

// workbookColumns maps sheet columns to schema fields.
var workbookColumns = map[billing.Provider]map[int]string{
	billing.ProviderEndesa: withBands(map[int]string{
		0: "mes_facturado", 1: "tarifa", 4: "numero_factura", 5: "direccion_suministro",
		13: "num_dias", 14: "importe_de_potencia", 21: "kw_totales", 24: "importe_consumo",
		26: "importe_bono_social", 27: "importe_impuesto_electrico", 28: "importe_alquiler_equipos",
		29: "importe_otros_conceptos", 32: "importe_exceso_potencia", 33: "importe_reactiva",
		39: "importe_base_imponible", 42: "importe_facturado", 43: "fecha_de_factura",
		44: "fecha_de_vencimiento",
	}, true),
	billing.ProviderEnel: withBands(map[int]string{
		0: "mes_facturado", 4: "numero_factura", 5: "direccion_suministro",
		13: "num_dias", 14: "importe_de_potencia", 25: "importe_atr",
		27: "importe_impuesto_electrico", 28: "importe_alquiler_equipos",
		29: "importe_otros_conceptos", 32: "importe_exceso_potencia", 33: "importe_reactiva",
	}, false),
}

func withBands(columns map[int]string, consumption bool) map[int]string {
	for band := 1; band <= billing.Bands; band++ {
		columns[6+band] = fmt.Sprintf("potencia_p%d", band)
		if consumption {
			columns[14+band] = fmt.Sprintf("consumo_kw_p%d", band)
		}
	}
	return columns
}

// WorkbookSink keeps one sheet per account in an XLSX file and upserts rows
// by invoice number.
type WorkbookSink struct {
	path   string
	schema billing.Schema
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewWorkbookSink prepares the workbook directory.
func NewWorkbookSink(path string, provider billing.Provider, logger zerolog.Logger) (*WorkbookSink, error) {
	if path == "" {
		return nil, errors.New("export: empty workbook path")
	}
	schema, err := billing.SchemaFor(provider)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &WorkbookSink{
		path:   path,
		schema: schema,
		logger: logger.With().Str("component", "workbook_sink").Logger(),
	}, nil
}

// Write upserts inv in the sheet of its account. Records without an invoice
// number have no row key and are not written.
func (w *WorkbookSink) Write(_ context.Context, inv *billing.Invoice) error {
	if inv == nil {
		return errors.New("export: nil invoice")
	}
	if inv.IsPlaceholder() {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	f, created, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	sheet := SheetName(inv.AccountCode())
	if err := w.ensureSheet(f, sheet, created); err != nil {
		return err
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return err
	}
	rowIndex := len(rows) + 1
	updated := false
	for i, row := range rows {
		if i > 0 && len(row) > invoiceNumberColumn && row[invoiceNumberColumn] == inv.Number() {
			rowIndex = i + 1
			updated = true
			break
		}
	}

	cell, err := excelize.CoordinatesToCellName(1, rowIndex)
	if err != nil {
		return err
	}
	values := w.values(inv)
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return err
	}
	if err := w.formatRow(f, sheet, rowIndex); err != nil {
		return err
	}
	if err := f.SaveAs(w.path); err != nil {
		return err
	}
	w.logger.Debug().
		Str("event", "workbook_upsert").
		Str("sheet", sheet).
		Str("invoice", inv.Number()).
		Int("row", rowIndex).
		Bool("updated", updated).
		Msg("workbook row written")
	return nil
}

func (w *WorkbookSink) open() (*excelize.File, bool, error) {
	if _, err := os.Stat(w.path); err == nil {
		f, err := excelize.OpenFile(w.path)
		return f, false, err
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}
	return excelize.NewFile(), true, nil
}

func (w *WorkbookSink) ensureSheet(f *excelize.File, sheet string, created bool) error {
	index, err := f.GetSheetIndex(sheet)
	if err != nil {
		return err
	}
	if index >= 0 {
		return nil
	}
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if created {
		_ = f.DeleteSheet("Sheet1")
	}
	header := make([]any, len(WorkbookHeader))
	for i, title := range WorkbookHeader {
		header[i] = title
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#BFBFBF"}},
	})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(WorkbookHeader), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func (w *WorkbookSink) formatRow(f *excelize.File, sheet string, row int) error {
	currency := `#,##0.00" €"`
	energy := `#,##0" kWh"`
	currencyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &currency})
	if err != nil {
		return err
	}
	energyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &energy})
	if err != nil {
		return err
	}
	apply := func(columns []int, style int) error {
		for _, col := range columns {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
				return err
			}
		}
		return nil
	}
	if err := apply(currencyColumns, currencyStyle); err != nil {
		return err
	}
	return apply(energyColumns, energyStyle)
}

// values renders inv in WorkbookHeader order. Unmapped columns stay empty.
func (w *WorkbookSink) values(inv *billing.Invoice) []any {
	row := make([]any, len(WorkbookHeader))
	row[3] = inv.AccountCode()
	for col, name := range workbookColumns[w.schema.Provider] {
		field, ok := w.schema.Field(name)
		if !ok {
			continue
		}
		if value, set := field.Value(inv); set {
			row[col] = value
			continue
		}
		if field.Kind == billing.KindNumber {
			row[col] = 0.0
		} else {
			row[col] = field.Default
		}
	}
	return row
}

// SheetName turns an account code into a valid sheet title.
func SheetName(account string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '-'
		}
		return r
	}, strings.TrimSpace(account))
	if len([]rune(name)) > 31 {
		name = string([]rune(name)[:31])
	}
	if name == "" {
		return "SIN_CUP"
	}
	return name
}
