// Package codec converts cart line items to and from the JSON text stored in
// the cart_items column.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/tair/purchase-ingest/internal/purchase/domain"
)

const emptyList = "[]"

// LineItemCodec is the conversion used by the purchase stores
type LineItemCodec interface {
	Encode(items []domain.LineItem) (string, error)
	Decode(text string) []domain.LineItem
}

// JSONCodec stores line items as a JSON array of {id, quantity}
type JSONCodec struct{}

func (JSONCodec) Encode(items []domain.LineItem) (string, error) { return Encode(items) }

func (JSONCodec) Decode(text string) []domain.LineItem { return Decode(text) }

// DecodeError describes stored text that is not a line-item array
type DecodeError struct {
	Text string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed line items %q: %v", truncate(e.Text, 64), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode renders items as a JSON array. An empty or nil slice encodes to "[]".
func Encode(items []domain.LineItem) (string, error) {
	if len(items) == 0 {
		return emptyList, nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode line items: %w", err)
	}
	return string(b), nil
}

// Decode parses text produced by Encode. Anything unparseable yields an empty
// list: a committed record must stay readable even if its column is damaged.
func Decode(text string) []domain.LineItem {
	items, err := DecodeStrict(text)
	if err != nil {
		return []domain.LineItem{}
	}
	return items
}

// DecodeStrict is Decode with the parse failure reported
func DecodeStrict(text string) ([]domain.LineItem, error) {
	var items []domain.LineItem
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, &DecodeError{Text: text, Err: err}
	}
	if items == nil {
		// JSON null
		items = []domain.LineItem{}
	}
	return items, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
