package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/application"
)

const maxReportMessage = 90

// BuildRunReportPDF renders the summary of a run and one line per record.
func BuildRunReportPDF(result application.RunResult) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, tr(fmt.Sprintf("Invoice run %s", result.Provider.Label())))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	lines := []string{
		fmt.Sprintf("Run: %s", result.RunID),
		fmt.Sprintf("Period: %s - %s", result.Query.From, result.Query.To),
		fmt.Sprintf("Started: %s", result.StartedAt.Format(time.RFC3339)),
		fmt.Sprintf("Finished: %s", result.FinishedAt.Format(time.RFC3339)),
		fmt.Sprintf("Processed: %d  Failed: %d  Skipped: %d  Empty accounts: %d",
			result.Processed, result.Failed, result.Skipped, result.Placeholders),
	}
	for _, line := range lines {
		pdf.Cell(0, 6, tr(line))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(55, 6, "CUP", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Invoice", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Total", "1", 0, "C", false, 0, "")
	pdf.CellFormat(15, 6, "Error", "1", 0, "C", false, 0, "")
	pdf.CellFormat(142, 6, "Message", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 8)
	for _, inv := range result.Records {
		total := "-"
		if amount, ok := inv.TotalAmount.Get(); ok {
			total = fmt.Sprintf("%.2f", amount)
		}
		flag := "No"
		if inv.HasError() {
			flag = "Yes"
		}
		message := []rune(inv.ErrorMessage())
		if len(message) > maxReportMessage {
			message = append(message[:maxReportMessage-3], []rune("...")...)
		}
		pdf.CellFormat(55, 6, tr(inv.AccountCode()), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, tr(inv.Number()), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, total, "1", 0, "R", false, 0, "")
		pdf.CellFormat(15, 6, flag, "1", 0, "C", false, 0, "")
		pdf.CellFormat(142, 6, tr(string(message)), "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteRunReportPDF stores the run report as <dir>/<run_id>.pdf.
func WriteRunReportPDF(dir string, result application.RunResult) (string, error) {
	data, err := BuildRunReportPDF(result)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, result.RunID+".pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
