package export

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-cli/internal/model"
)

// Document is the copy-to-clipboard shape: {"results": [...]}.
type Document struct {
	Results []model.ResultGroup `json:"results"`
}

// Serialize renders groups as an indented Document. Field order follows the
// wire order of model.ResultRow and an empty set renders as `[]`.
func Serialize(groups []model.ResultGroup) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Document{Results: model.CloneGroups(groups)}); err != nil {
		return nil, eris.Wrap(err, "export: encode results")
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses a Document produced by Serialize.
func Decode(data []byte) ([]model.ResultGroup, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "export: decode results")
	}
	return model.CloneGroups(doc.Results), nil
}
