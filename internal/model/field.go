package model

import "strings"

// Field names a ResultRow column using its wire name.
type Field string

const (
	FieldProductName      Field = "product_name"
	FieldQuantity         Field = "quantity"
	FieldUnit             Field = "unit"
	FieldPrice            Field = "price"
	FieldPriceType        Field = "price_type"
	FieldDerivedUnitPrice Field = "derived_unit_price"
	FieldConfidence       Field = "confidence"
	FieldRawLine          Field = "raw_line"
)

// EditableFields returns the user-editable fields in display order.
func EditableFields() []Field {
	return []Field{
		FieldProductName,
		FieldQuantity,
		FieldUnit,
		FieldPrice,
		FieldPriceType,
		FieldDerivedUnitPrice,
		FieldConfidence,
	}
}

var fieldAliases = map[string]Field{
	"productname":      FieldProductName,
	"pricetype":        FieldPriceType,
	"derivedunitprice": FieldDerivedUnitPrice,
	"rawline":          FieldRawLine,
}

// ParseField resolves a field name. Wire names (snake_case) and camelCase
// spellings are both accepted.
func ParseField(s string) (Field, bool) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	if f.Known() {
		return f, true
	}
	if alias, ok := fieldAliases[string(f)]; ok {
		return alias, true
	}
	return "", false
}

// Known reports whether f names a ResultRow column.
func (f Field) Known() bool {
	return f == FieldRawLine || f.Editable()
}

// Editable reports whether users may change the field.
func (f Field) Editable() bool {
	switch f {
	case FieldProductName, FieldQuantity, FieldUnit, FieldPrice,
		FieldPriceType, FieldDerivedUnitPrice, FieldConfidence:
		return true
	default:
		return false
	}
}

// Numeric reports whether edits to the field are coerced to numbers.
func (f Field) Numeric() bool {
	switch f {
	case FieldQuantity, FieldPrice, FieldDerivedUnitPrice, FieldConfidence:
		return true
	default:
		return false
	}
}
