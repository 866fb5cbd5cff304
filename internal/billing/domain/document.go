package billing

import (
	"fmt"
	"strings"

	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/normalize"
)

// DocumentKind is the type of a downloaded invoice document.
type DocumentKind string

const (
	DocumentPDF DocumentKind = "pdf"
	DocumentXML DocumentKind = "xml"
)

// DocumentFileName builds the local name of a downloaded document:
// YYYYMM_<account>_<invoice>_<PROVIDER>.<ext>, the period taken from the
// issue date (DD/MM/YYYY).
func DocumentFileName(provider Provider, issueDate, accountCode, invoiceNumber string, kind DocumentKind) string {
	period := "000000"
	if issued, err := normalize.ParseDayMonthYear(issueDate); err == nil {
		period = issued.Format("200601")
	}
	invoiceNumber = strings.NewReplacer("/", "-", "\\", "-", " ", "").Replace(invoiceNumber)
	return fmt.Sprintf("%s_%s_%s_%s.%s", period, accountCode, invoiceNumber, provider.Label(), kind)
}

// Document is a downloaded file attached to an invoice.
type Document struct {
	Kind DocumentKind
	Path string
}
