package model

// ResultRow is one parsed invoice line item. RawLine is the source text the
// row was extracted from and is never edited.
type ResultRow struct {
	ProductName      Value  `json:"product_name"`
	Quantity         Value  `json:"quantity"`
	Unit             Value  `json:"unit"`
	Price            Value  `json:"price"`
	PriceType        Value  `json:"price_type"`
	DerivedUnitPrice Value  `json:"derived_unit_price"`
	RawLine          string `json:"raw_line"`
	Confidence       Value  `json:"confidence"`
}

// ResultGroup holds the rows extracted from one submitted input.
type ResultGroup struct {
	InputIndex int         `json:"input_index"`
	Items      []ResultRow `json:"items"`
}

// Get returns the value of an editable field. Unknown fields and RawLine
// yield null.
func (r *ResultRow) Get(f Field) Value {
	if p := r.slot(f); p != nil {
		return *p
	}
	return Null()
}

// Set assigns an editable field and reports whether the field was settable.
func (r *ResultRow) Set(f Field, v Value) bool {
	p := r.slot(f)
	if p == nil {
		return false
	}
	*p = v
	return true
}

func (r *ResultRow) slot(f Field) *Value {
	switch f {
	case FieldProductName:
		return &r.ProductName
	case FieldQuantity:
		return &r.Quantity
	case FieldUnit:
		return &r.Unit
	case FieldPrice:
		return &r.Price
	case FieldPriceType:
		return &r.PriceType
	case FieldDerivedUnitPrice:
		return &r.DerivedUnitPrice
	case FieldConfidence:
		return &r.Confidence
	default:
		return nil
	}
}

// Clone returns a deep copy of the group.
func (g ResultGroup) Clone() ResultGroup {
	items := make([]ResultRow, len(g.Items))
	copy(items, g.Items)
	return ResultGroup{InputIndex: g.InputIndex, Items: items}
}

// CloneGroups deep-copies a result set. A nil input yields an empty, non-nil
// slice so serializations render `[]` rather than `null`.
func CloneGroups(groups []ResultGroup) []ResultGroup {
	out := make([]ResultGroup, len(groups))
	for i, g := range groups {
		out[i] = g.Clone()
	}
	return out
}

// RowCount returns the total number of rows across all groups.
func RowCount(groups []ResultGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.Items)
	}
	return n
}
