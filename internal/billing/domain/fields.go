package billing

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/normalize"
)

// NotAvailable is the export value of unset identity fields.
const NotAvailable = "N/A"

// Export columns that precede the schema fields.
const (
	ColumnError        = "error_RPA"
	ColumnErrorMessage = "msg_error_RPA"
	ColumnAccount      = "cup"
)

// Kind is the value type held by a field.
type Kind int

const (
	KindText Kind = iota + 1
	KindNumber
	KindInteger
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	default:
		return "unknown"
	}
}

// Field is one entry of the enumerated field table. The slot accessor
// matching Kind is the only one set.
type Field struct {
	Name string
	Kind Kind
	// Default is the export rendering of an unset value.
	Default string

	text    func(*Invoice) *Opt[string]
	number  func(*Invoice) *Opt[float64]
	integer func(*Invoice) *Opt[int]
}

func textField(name, def string, slot func(*Invoice) *Opt[string]) Field {
	return Field{Name: name, Kind: KindText, Default: def, text: slot}
}

func numberField(name string, slot func(*Invoice) *Opt[float64]) Field {
	return Field{Name: name, Kind: KindNumber, Default: "0", number: slot}
}

func integerField(name string, slot func(*Invoice) *Opt[int]) Field {
	return Field{Name: name, Kind: KindInteger, integer: slot}
}

// bandFields expands prefix into prefix+"p1".."p6".
func bandFields(prefix string, bands func(*Invoice) *[Bands]Opt[float64]) []Field {
	fields := make([]Field, 0, Bands)
	for band := 0; band < Bands; band++ {
		band := band
		fields = append(fields, numberField(fmt.Sprintf("%sp%d", prefix, band+1), func(inv *Invoice) *Opt[float64] {
			return &bands(inv)[band]
		}))
	}
	return fields
}

// IsSet reports whether the field holds a value on inv.
func (f Field) IsSet(inv *Invoice) bool {
	_, ok := f.Value(inv)
	return ok
}

// Value returns the current value as string, float64 or int.
func (f Field) Value(inv *Invoice) (any, bool) {
	switch f.Kind {
	case KindText:
		return f.text(inv).Get()
	case KindNumber:
		return f.number(inv).Get()
	case KindInteger:
		return f.integer(inv).Get()
	}
	return nil, false
}

// Number returns the numeric value, 0 when unset.
func (f Field) Number(inv *Invoice) float64 {
	switch f.Kind {
	case KindNumber:
		return f.number(inv).Or(0)
	case KindInteger:
		return float64(f.integer(inv).Or(0))
	}
	return 0
}

// Set stores an already coerced value.
func (f Field) Set(inv *Invoice, value any) error {
	switch f.Kind {
	case KindText:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: %s wants text, got %T", ErrFieldKind, f.Name, value)
		}
		*f.text(inv) = Some(v)
	case KindNumber:
		v, ok := value.(float64)
		if !ok {
			return fmt.Errorf("%w: %s wants number, got %T", ErrFieldKind, f.Name, value)
		}
		*f.number(inv) = Some(v)
	case KindInteger:
		v, ok := value.(int)
		if !ok {
			return fmt.Errorf("%w: %s wants integer, got %T", ErrFieldKind, f.Name, value)
		}
		*f.integer(inv) = Some(v)
	default:
		return fmt.Errorf("%w: %s", ErrFieldKind, f.Name)
	}
	return nil
}

// Coerce converts raw extractor output to the field's kind.
func (f Field) Coerce(raw any) (any, error) {
	switch f.Kind {
	case KindText:
		return coerceText(f.Name, raw)
	case KindNumber:
		return coerceNumber(f.Name, raw)
	case KindInteger:
		value, err := coerceNumber(f.Name, raw)
		if err != nil {
			return nil, err
		}
		n := value.(float64)
		if n != math.Trunc(n) {
			return nil, fmt.Errorf("%w: %s wants integer, got %v", ErrFieldKind, f.Name, n)
		}
		return int(n), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrFieldKind, f.Name)
}

// Format renders the field for tabular export.
func (f Field) Format(inv *Invoice) string {
	value, ok := f.Value(inv)
	if !ok {
		return f.Default
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	return f.Default
}

func coerceText(name string, raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	return nil, fmt.Errorf("%w: %s wants text, got %T", ErrFieldKind, name, raw)
}

func coerceNumber(name string, raw any) (any, error) {
	var value float64
	switch v := raw.(type) {
	case float64:
		value = v
	case float32:
		value = float64(v)
	case int:
		value = float64(v)
	case int64:
		value = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFieldKind, name, err)
		}
		value = parsed
	case string:
		parsed, err := normalize.Amount(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFieldKind, name, err)
		}
		value = parsed
	default:
		return nil, fmt.Errorf("%w: %s wants number, got %T", ErrFieldKind, name, raw)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("%w: %s is not finite", ErrFieldKind, name)
	}
	return value, nil
}
