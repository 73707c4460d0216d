// Package codec plugs goccy/go-json into Connect so handlers can use plain
// Go structs as messages.
package codec

import (
	"bytes"

	"github.com/goccy/go-json"
)

// JSON replaces Connect's protojson codec under the same name, so the
// content type stays application/json.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (JSON) Unmarshal(data []byte, msg any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}
