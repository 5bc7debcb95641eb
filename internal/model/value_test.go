package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_ZeroIsNull(t *testing.T) {
	t.Parallel()

	var v Value
	assert.True(t, v.IsNull())
	assert.Equal(t, KindNull, v.Kind())
	assert.Equal(t, "", v.String())
}

func TestValue_Accessors(t *testing.T) {
	t.Parallel()

	n := Number(1200)
	f, ok := n.Float()
	require.True(t, ok)
	assert.Equal(t, 1200.0, f)
	_, ok = n.Str()
	assert.False(t, ok)
	assert.Equal(t, "1200", n.String())

	s := Text("n/a")
	str, ok := s.Str()
	require.True(t, ok)
	assert.Equal(t, "n/a", str)
	_, ok = s.Float()
	assert.False(t, ok)

	assert.Equal(t, "0.25", Number(0.25).String())
	assert.True(t, Number(1).Equal(Number(1)))
	assert.False(t, Number(1).Equal(Text("1")))
}

func TestValue_MarshalJSON(t *testing.T) {
	t.Parallel()

	row := ResultRow{
		ProductName: Text("Sugar"),
		Quantity:    Number(50),
		Price:       Text("1."),
		Confidence:  Number(0.9),
		RawLine:     "Sugar 50",
	}
	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"product_name": "Sugar",
		"quantity": 50,
		"unit": null,
		"price": "1.",
		"price_type": null,
		"derived_unit_price": null,
		"raw_line": "Sugar 50",
		"confidence": 0.9
	}`, string(data))
}

func TestValue_MarshalJSON_NonFinite(t *testing.T) {
	t.Parallel()

	_, err := json.Marshal(Number(math.NaN()))
	require.Error(t, err)
	_, err = json.Marshal(Number(math.Inf(1)))
	require.Error(t, err)
}

func TestValue_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	var row ResultRow
	err := json.Unmarshal([]byte(`{
		"product_name": "Cooking Oil",
		"quantity": 5,
		"unit": "bottle",
		"price": 1200,
		"price_type": "unit",
		"derived_unit_price": null,
		"raw_line": "Cooking Oil: Qty 5 bottles Price 1200/bottle",
		"confidence": 1.0
	}`), &row)
	require.NoError(t, err)

	assert.Equal(t, Text("Cooking Oil"), row.ProductName)
	assert.Equal(t, Number(5), row.Quantity)
	assert.Equal(t, Text("bottle"), row.Unit)
	assert.Equal(t, Number(1200), row.Price)
	assert.True(t, row.DerivedUnitPrice.IsNull())
	assert.Equal(t, Number(1), row.Confidence)
	assert.Equal(t, "Cooking Oil: Qty 5 bottles Price 1200/bottle", row.RawLine)
}

func TestValue_UnmarshalJSON_RejectsOtherTypes(t *testing.T) {
	t.Parallel()

	var v Value
	require.Error(t, json.Unmarshal([]byte(`true`), &v))
	require.Error(t, json.Unmarshal([]byte(`{"a":1}`), &v))
}

func TestValue_MissingFieldsDecodeAsNull(t *testing.T) {
	t.Parallel()

	var row ResultRow
	require.NoError(t, json.Unmarshal([]byte(`{"raw_line":"x"}`), &row))
	for _, f := range EditableFields() {
		assert.True(t, row.Get(f).IsNull(), f)
	}
}
