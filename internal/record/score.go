package record

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Score is a small non-negative integer that arrives either as a JSON number
// or as a decimal-digit string. Zero means absent.
type Score int

// UnmarshalJSON accepts 4, 4.0, "4", "" and null.
func (s *Score) UnmarshalJSON(data []byte) error {
	n, err := scoreFromJSON(data)
	if err != nil {
		return err
	}
	*s = Score(n)
	return nil
}

func scoreFromJSON(data []byte) (int, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, err
	}
	return scoreFromAny(v)
}

func scoreFromAny(v any) (int, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case float64:
		if val < 0 || val != math.Trunc(val) {
			return 0, fmt.Errorf("score must be a non-negative integer, got %v", val)
		}
		return int(val), nil
	case string:
		val = strings.TrimSpace(val)
		if val == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("score must be a decimal-digit string, got %q", val)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("score must be a number or string, got %T", v)
	}
}

// String renders the score, or "" when absent.
func (s Score) String() string {
	if s == 0 {
		return ""
	}
	return strconv.Itoa(int(s))
}
