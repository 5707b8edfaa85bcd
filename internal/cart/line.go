package cart

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/angelmondragon/zerymnor-storefront/internal/catalog"
)

// Line is one cart entry. Quantity is always at least 1 once stored.
type Line struct {
	ArticleID string `json:"id"`
	Quantity  int    `json:"quantity"`
}

// Group merges duplicate ids, keeping first-seen order, and drops lines
// with an empty id or a quantity below 1.
func Group(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line.ArticleID)
		if id == "" || line.Quantity < 1 {
			continue
		}
		if i, ok := index[id]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[id] = len(out)
		out = append(out, Line{ArticleID: id, Quantity: line.Quantity})
	}
	return out
}

// ParseQuantity leniently reads a requested quantity; anything below 1 is 1.
func ParseQuantity(raw string) int {
	n := catalog.ParseInt(raw)
	if n < 1 {
		return 1
	}
	return n
}

// decodeLines accepts the grouped form, the flat multiset of ids, or a mixture.
// Anything that is not a JSON array decodes to an empty cart.
func decodeLines(raw string) []Line {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 {
		return []Line{}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return []Line{}
	}

	lines := make([]Line, 0, len(items))
	for _, item := range items {
		var id string
		if err := json.Unmarshal(item, &id); err == nil {
			lines = append(lines, Line{ArticleID: id, Quantity: 1})
			continue
		}
		var entry struct {
			ID       json.RawMessage `json:"id"`
			Quantity json.RawMessage `json:"quantity"`
		}
		if err := json.Unmarshal(item, &entry); err != nil {
			continue
		}
		lines = append(lines, Line{ArticleID: rawString(entry.ID), Quantity: rawQuantity(entry.Quantity)})
	}
	return Group(lines)
}

func encodeLines(lines []Line) (string, error) {
	grouped := Group(lines)
	payload, err := json.Marshal(grouped)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// rawQuantity treats a missing quantity as 1, as the flat form does.
func rawQuantity(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 1
	}
	var value any
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&value); err != nil {
		return 0
	}
	return catalog.ParseInt(value)
}
