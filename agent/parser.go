package agent

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/richinex/copilot/internal/jsonx"
)

var (
	intPattern   = regexp.MustCompile(`\d+`)
	floatPattern = regexp.MustCompile(`\d+\.?\d*`)
)

// ParseAnswer coerces raw model output into the shape the format hint asks
// for. Parsing never fails: a miss yields the format's zero answer (0, 0.0,
// empty map, empty slice) so downstream stages always have a typed value.
//
// Structured hints take whichever JSON span appears first in the text, so
// a model that answered with the wrong container still parses; validation
// catches the mismatch.
func ParseAnswer(raw string, format Format) Answer {
	text := strings.TrimSpace(jsonx.StripCodeFences(raw))

	switch format {
	case FormatInt:
		if m := intPattern.FindString(text); m != "" {
			if v, err := strconv.ParseInt(m, 10, 64); err == nil {
				return IntAnswer(v)
			}
		}
		return IntAnswer(0)

	case FormatFloat:
		if m := floatPattern.FindString(text); m != "" {
			if v, err := strconv.ParseFloat(m, 64); err == nil {
				return FloatAnswer(math.Round(v*100) / 100)
			}
		}
		return FloatAnswer(0.0)

	case FormatDict, FormatList:
		switch v := extractJSONValue(text).(type) {
		case map[string]interface{}:
			return DictAnswer(v)
		case []interface{}:
			return ListAnswer(v)
		}
		if format == FormatDict {
			return DictAnswer(map[string]interface{}{})
		}
		return ListAnswer([]interface{}{})

	default:
		return StringAnswer(text)
	}
}

// extractJSONValue finds the first balanced object or array span in the
// text and unmarshals it, or returns nil when neither parses.
func extractJSONValue(text string) interface{} {
	type candidate struct {
		at      int
		extract func(string) (string, error)
	}
	candidates := []candidate{
		{strings.IndexByte(text, '{'), jsonx.ExtractObject},
		{strings.IndexByte(text, '['), jsonx.ExtractArray},
	}
	if candidates[1].at >= 0 && (candidates[0].at < 0 || candidates[1].at < candidates[0].at) {
		candidates[0], candidates[1] = candidates[1], candidates[0]
	}

	for _, c := range candidates {
		if c.at < 0 {
			continue
		}
		span, err := c.extract(text)
		if err != nil {
			continue
		}
		var v interface{}
		if json.Unmarshal([]byte(span), &v) == nil {
			switch v.(type) {
			case map[string]interface{}, []interface{}:
				return v
			}
		}
	}
	return nil
}

// ValidateAnswer reports whether an answer's variant matches the expected
// format. The check is coarse type conformance, not content correctness.
func ValidateAnswer(a Answer, format Format) bool {
	return a.IsSet() && a.Format() == format
}
