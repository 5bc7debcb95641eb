package devserver

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/invoice-cli/internal/model"
)

// SheetName is the worksheet holding exported rows.
const SheetName = "parsed_items"

// Headers is the exported column order.
var Headers = []string{
	"input_index",
	"product_name",
	"quantity",
	"unit",
	"price",
	"price_type",
	"derived_unit_price",
	"raw_line",
	"confidence",
}

// writeWorkbook renders one row per result row, in group order, below a
// header row.
func writeWorkbook(w io.Writer, groups []model.ResultGroup) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range Headers {
		header.AddCell().SetString(h)
	}

	for _, g := range groups {
		for _, item := range g.Items {
			row := sheet.AddRow()
			row.AddCell().SetInt(g.InputIndex)
			setValue(row.AddCell(), item.ProductName)
			setValue(row.AddCell(), item.Quantity)
			setValue(row.AddCell(), item.Unit)
			setValue(row.AddCell(), item.Price)
			setValue(row.AddCell(), item.PriceType)
			setValue(row.AddCell(), item.DerivedUnitPrice)
			row.AddCell().SetString(item.RawLine)
			setValue(row.AddCell(), item.Confidence)
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write")
	}
	return nil
}

// setValue leaves null cells empty.
func setValue(c *xlsx.Cell, v model.Value) {
	if f, ok := v.Float(); ok {
		c.SetFloat(f)
		return
	}
	if s, ok := v.Str(); ok {
		c.SetString(s)
	}
}
