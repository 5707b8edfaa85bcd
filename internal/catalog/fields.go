package catalog

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultPlaceholderImage is used when a record carries no usable image.
const DefaultPlaceholderImage = "./img/placeholder.png"

// Field aliases, in priority order. The first non-empty value wins.
var (
	TitleFields            = []string{"titulo", "Title", "title", "name", "Name", "nombre"}
	ShortDescriptionFields = []string{"descripcionCorta", "shortDescription", "description", "Description"}
	LongDescriptionFields  = []string{"descripcionLarga", "longDescription"}
	PriceFields            = []string{"precio", "Precio", "price", "Price"}
	StockFields            = []string{"stock", "Stock", "existencias", "inventory"}
	ImageFields            = []string{"imgSrc", "imagen", "imagenes", "image", "images", "img", "Attachments", "attachments"}
)

// Admin write field names.
const (
	FieldTitle            = "titulo"
	FieldShortDescription = "descripcionCorta"
	FieldLongDescription  = "descripcionLarga"
	FieldPrice            = "precio"
	FieldStock            = "stock"
	FieldImage            = "imgSrc"
)

// FirstString returns the first non-blank string found under keys.
func FirstString(fields map[string]any, keys []string) string {
	for _, key := range keys {
		if value, ok := fields[key]; ok {
			if s := asString(value); s != "" {
				return s
			}
		}
	}
	return ""
}

// LocateField returns the first alias present in fields with a non-nil value.
func LocateField(fields map[string]any, keys []string) (string, any, bool) {
	for _, key := range keys {
		if value, ok := fields[key]; ok && value != nil {
			return key, value, true
		}
	}
	return "", nil, false
}

// ParseInt leniently reads a non-negative integer: numbers are truncated,
// strings use their leading integer prefix, everything else is zero.
func ParseInt(value any) int {
	var n float64
	switch v := value.(type) {
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case float64:
		n = v
	case json.Number:
		if f, err := v.Float64(); err == nil {
			n = f
		} else {
			n = float64(leadingInt(v.String()))
		}
	case string:
		n = float64(leadingInt(v))
	default:
		return 0
	}
	if math.IsNaN(n) || n <= 0 {
		return 0
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// ParsePrice leniently reads a non-negative decimal price.
func ParsePrice(value any) decimal.Decimal {
	var d decimal.Decimal
	switch v := value.(type) {
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero
		}
		d = decimal.NewFromFloat(v)
	case json.Number:
		parsed, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	default:
		return decimal.Zero
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ImageURL resolves the record image: aliased fields first, then any other
// attachment-like field in sorted key order.
func ImageURL(fields map[string]any, placeholder string) string {
	for _, key := range ImageFields {
		if url := imageFrom(fields[key]); url != "" {
			return url
		}
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if url := attachmentURL(fields[key]); url != "" {
			return url
		}
	}

	if placeholder == "" {
		return DefaultPlaceholderImage
	}
	return placeholder
}

func imageFrom(value any) string {
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return attachmentURL(value)
}

// attachmentURL reads url, then thumbnails.large.url, then thumbnails.small.url
// from the first attachment that has any of them.
func attachmentURL(value any) string {
	list, ok := value.([]any)
	if !ok {
		return ""
	}
	for _, item := range list {
		attachment, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if url := asString(attachment["url"]); url != "" {
			return url
		}
		thumbs, _ := attachment["thumbnails"].(map[string]any)
		for _, size := range []string{"large", "small"} {
			thumb, _ := thumbs[size].(map[string]any)
			if url := asString(thumb["url"]); url != "" {
				return url
			}
		}
	}
	return ""
}

func asString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func leadingInt(raw string) int {
	trimmed := strings.TrimSpace(raw)
	end := 0
	if end < len(trimmed) && (trimmed[end] == '-' || trimmed[end] == '+') {
		end++
	}
	digitsStart := end
	for end < len(trimmed) && trimmed[end] >= '0' && trimmed[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0
	}
	n, err := strconv.Atoi(trimmed[:end])
	if err != nil {
		if trimmed[0] == '-' {
			return 0
		}
		return math.MaxInt32
	}
	return n
}
