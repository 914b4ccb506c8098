package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	fenceOpen  = regexp.MustCompile("^```[a-zA-Z]*\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
	leadNumber = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)
)

// keyAliases maps spellings the model sometimes uses onto our field names.
var keyAliases = map[string]string{
	"height": "height", "alto": "height", "altura": "height",
	"width": "width", "ancho": "width", "anchura": "width",
	"length": "length", "largo": "length", "longitud": "length", "depth": "length",
	"weight": "weight", "peso": "weight",
	"source": "source", "fuente": "source", "reference": "source", "url": "source",
}

// StripCodeFences removes a surrounding ```json ... ``` (or plain ```) block.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// NormalizeDimensionsJSON turns a raw model answer into JSON matching
// BuildDimensionsJSONSchema. It returns the cleaned JSON and a list of what
// was dropped or coerced along the way.
func NormalizeDimensionsJSON(raw string) ([]byte, []string, error) {
	body := StripCodeFences(raw)
	var obj map[string]any
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		// prose around the object
		start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
		if start < 0 || end <= start {
			return nil, nil, fmt.Errorf("no JSON object in model output: %w", err)
		}
		if err := json.Unmarshal([]byte(body[start:end+1]), &obj); err != nil {
			return nil, nil, fmt.Errorf("decode model output: %w", err)
		}
	}

	var notes []string
	out := make(map[string]any, 5)
	for k, v := range obj {
		field, ok := keyAliases[strings.ToLower(strings.TrimSpace(k))]
		if !ok {
			notes = append(notes, "dropped unknown key "+k)
			continue
		}
		if field == "source" {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				out[field] = strings.TrimSpace(s)
			} else if v != nil {
				notes = append(notes, "dropped non-string "+k)
			}
			continue
		}
		n, ok := coerceNumber(v)
		switch {
		case !ok:
			notes = append(notes, "dropped non-numeric "+k)
		case n < 0:
			notes = append(notes, "dropped negative "+k)
		default:
			if _, isNum := v.(float64); !isNum {
				notes = append(notes, "coerced "+k)
			}
			out[field] = n
		}
	}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, notes, err
	}
	return b, notes, nil
}

// coerceNumber accepts JSON numbers and strings like "12.5 cm" or "1,2 kg".
func coerceNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		m := leadNumber.FindString(t)
		if m == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ParseDimensions runs the full normalize/validate/decode chain on a model answer.
func ParseDimensions(raw string) (DimensionFields, []string, error) {
	var fields DimensionFields
	clean, notes, err := NormalizeDimensionsJSON(raw)
	if err != nil {
		return fields, notes, err
	}
	if err := ValidateDimensionsJSON(clean); err != nil {
		return fields, notes, err
	}
	if err := json.Unmarshal(clean, &fields); err != nil {
		return fields, notes, fmt.Errorf("decode dimensions: %w", err)
	}
	return fields, notes, nil
}
