package job

import (
	"fmt"
	"strings"
	"time"
)

// Field names the editable receipt values.
type Field string

const (
	FieldDate     Field = "date"
	FieldReason   Field = "reason"
	FieldAmount   Field = "amount"
	FieldCategory Field = "category"
	FieldNote     Field = "note"
)

// Fields holds the user-editable values for one receipt row.
// Amount is kept as a decimal string, never as binary floating point, so the
// value written to the sheet is exactly the value the user typed.
type Fields struct {
	// Date in normalized YYYY-MM-DD form.
	Date string
	// Reason/description of the expense.
	Reason string
	// Amount as a canonical positive decimal string.
	Amount string
	// Category name as expected by the template.
	Category string
	// Optional note.
	Note string
}

// ValidationError describes a rejected field value. It never mutates job
// status; the caller surfaces it to the user directly.
type ValidationError struct {
	Field  Field
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("job: invalid %s: %s", e.Field, e.Reason)
}

// Set validates and stores one field value.
func (f *Fields) Set(field Field, value string) error {
	value = strings.TrimSpace(value)
	switch field {
	case FieldDate:
		d, err := NormalizeDate(value)
		if err != nil {
			return err
		}
		f.Date = d
	case FieldAmount:
		a, err := NormalizeAmount(value)
		if err != nil {
			return err
		}
		f.Amount = a
	case FieldReason:
		f.Reason = value
	case FieldCategory:
		f.Category = value
	case FieldNote:
		f.Note = value
	default:
		return &ValidationError{Field: field, Reason: "unknown field"}
	}
	return nil
}

// Get returns the current value of a field, or "" for unknown fields.
func (f Fields) Get(field Field) string {
	switch field {
	case FieldDate:
		return f.Date
	case FieldReason:
		return f.Reason
	case FieldAmount:
		return f.Amount
	case FieldCategory:
		return f.Category
	case FieldNote:
		return f.Note
	}
	return ""
}

// Month returns the target month (YYYY-MM) derived from the date field,
// or "" when no date is set.
func (f Fields) Month() string {
	if len(f.Date) < 7 {
		return ""
	}
	return f.Date[:7]
}

// dateLayouts are the input forms accepted on edit. The stored form is
// always YYYY-MM-DD.
var dateLayouts = []string{"2006-01-02", "2006/01/02", "20060102"}

// NormalizeDate parses an expense date and renders it as YYYY-MM-DD.
func NormalizeDate(s string) (string, error) {
	if s == "" {
		return "", &ValidationError{Field: FieldDate, Reason: "date is required"}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", &ValidationError{Field: FieldDate, Reason: "expected YYYY-MM-DD"}
}

// NormalizeAmount validates a positive decimal string and returns its
// canonical form: no thousands separators, no leading zeros, no trailing
// fraction zeros. The value is never converted through a float.
func NormalizeAmount(s string) (string, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return "", &ValidationError{Field: FieldAmount, Reason: "amount is required"}
	}
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if !digitsOnly(intPart) || (hasFrac && !digitsOnly(fracPart)) || (intPart == "" && fracPart == "") {
		return "", &ValidationError{Field: FieldAmount, Reason: "expected a positive decimal"}
	}
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	fracPart = strings.TrimRight(fracPart, "0")
	if intPart == "0" && fracPart == "" {
		return "", &ValidationError{Field: FieldAmount, Reason: "amount must be greater than zero"}
	}
	if fracPart == "" {
		return intPart, nil
	}
	return intPart + "." + fracPart, nil
}

// IsPositiveDecimal reports whether s parses as a decimal greater than zero.
func IsPositiveDecimal(s string) bool {
	_, err := NormalizeAmount(s)
	return err == nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
