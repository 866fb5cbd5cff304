package billing

import (
	"fmt"
	"strings"
)

// Bands is the number of tariff periods (P1..P6).
const Bands = 6

const errorSeparator = " | "

// Invoice is the canonical invoice record shared by both provider schemas.
// Which fields exist for a provider is decided by its Schema.
type Invoice struct {
	Provider Provider

	accountCode  string
	hasError     bool
	errorMessage string

	// DownloadSelector locates the documents in the portal. Never exported.
	DownloadSelector string

	InvoiceNumber Opt[string]
	ContractID    Opt[string]
	IssueDate     Opt[string]
	PeriodStart   Opt[string]
	PeriodEnd     Opt[string]
	BilledMonth   Opt[string]
	BilledDays    Opt[int]
	Tariff        Opt[string]
	SupplyAddress Opt[string]
	Sequence      Opt[string]
	Status        Opt[string]
	Installments  Opt[string]
	InvoiceType   Opt[string]
	InvoiceDate   Opt[string]
	DueDate       Opt[string]

	TotalAmount Opt[float64]

	Power             [Bands]Opt[float64]
	ConsumptionKWh    [Bands]Opt[float64]
	ConsumptionCharge [Bands]Opt[float64]
	IndexedEnergy     [Bands]Opt[float64]
	ExcessPower       [Bands]Opt[float64]

	PowerCharge              Opt[float64]
	TotalKWh                 Opt[float64]
	ConsumptionTotal         Opt[float64]
	ElectricityTax           Opt[float64]
	SocialBonus              Opt[float64]
	EquipmentRental          Opt[float64]
	ReactiveEnergy           Opt[float64]
	EfficiencyRegularization Opt[float64]
	OtherCharges             Opt[float64]
	ExcessPowerTotal         Opt[float64]

	PowerToll       Opt[float64]
	PowerSurcharge  Opt[float64]
	EnergyToll      Opt[float64]
	EnergySurcharge Opt[float64]
	TransportCharge Opt[float64]
	Subtotal        Opt[float64]

	TaxableBase    Opt[float64]
	InvoicedAmount Opt[float64]
}

// NewInvoice creates a record for an account.
func NewInvoice(provider Provider, accountCode string) (*Invoice, error) {
	if _, err := SchemaFor(provider); err != nil {
		return nil, err
	}
	accountCode = strings.TrimSpace(accountCode)
	if accountCode == "" {
		return nil, ErrEmptyAccountCode
	}
	return &Invoice{Provider: provider, accountCode: accountCode}, nil
}

// NewPlaceholder creates the record emitted for an account without invoices
// in the searched period. It carries a note but is not an error.
func NewPlaceholder(provider Provider, accountCode, note string) (*Invoice, error) {
	inv, err := NewInvoice(provider, accountCode)
	if err != nil {
		return nil, err
	}
	inv.appendMessage(note)
	return inv, nil
}

// AccountCode returns the supply point identifier.
func (i *Invoice) AccountCode() string {
	return i.accountCode
}

// HasError reports whether any stage failed for this record.
func (i *Invoice) HasError() bool {
	return i.hasError
}

// ErrorMessage returns every message appended so far.
func (i *Invoice) ErrorMessage() string {
	return i.errorMessage
}

// Fail flags the record and appends a prefixed message.
func (i *Invoice) Fail(code FailureCode, detail string) {
	i.hasError = true
	i.appendMessage(fmt.Sprintf("%s: %s", code, detail))
}

// IsPlaceholder reports whether the record stands for an empty period.
func (i *Invoice) IsPlaceholder() bool {
	return !i.InvoiceNumber.IsSet()
}

// Number returns the invoice number or "N/A".
func (i *Invoice) Number() string {
	return i.InvoiceNumber.Or(NotAvailable)
}

func (i *Invoice) appendMessage(msg string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return
	}
	if i.errorMessage == "" {
		i.errorMessage = msg
		return
	}
	i.errorMessage += errorSeparator + msg
}
