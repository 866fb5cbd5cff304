package billing

import "errors"

var (
	// ErrEmptyAccountCode is returned when an invoice has no account code.
	ErrEmptyAccountCode = errors.New("billing: empty account code")
	// ErrUnknownProvider is returned for providers without a schema.
	ErrUnknownProvider = errors.New("billing: unknown provider")
	// ErrUnknownField is returned when a field name is not in the schema.
	ErrUnknownField = errors.New("billing: unknown field")
	// ErrFieldKind is returned when a value cannot be stored in a field.
	ErrFieldKind = errors.New("billing: value does not match field kind")
)

// FailureCode prefixes the messages appended to an invoice on failure.
type FailureCode string

const (
	FailureRow            FailureCode = "ERROR"
	FailureDownload       FailureCode = "ERROR_DESCARGA"
	FailureParse          FailureCode = "ERROR_PARSEO"
	FailureFiles          FailureCode = "ERROR_FILES"
	FailureRecognition    FailureCode = "ERROR_PDF"
	FailureNegativeAmount FailureCode = "IMPORTE_NEGATIVO"
)
