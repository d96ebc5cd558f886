package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hpungsan/clinote/internal/merge"
	"github.com/hpungsan/clinote/internal/record"
)

// signatureKey is never carried in a transfer payload.
const signatureKey = "firmaDataURL"

// EncodePayload projects an admission record to the compact JSON object used
// for QR transfer. Empty strings, nulls, empty lists, empty objects and absent
// (zero) scores are dropped, and the signature image always is.
func EncodePayload(a *record.Admission) (string, error) {
	if a == nil {
		return "{}", nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	delete(m, signatureKey)
	prune(m)

	out, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(out), nil
}

// prune removes empty values from m in place, depth first.
func prune(m map[string]any) {
	for k, v := range m {
		if child, ok := v.(map[string]any); ok {
			prune(child)
		}
		if isEmpty(v) {
			delete(m, k)
		}
	}
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case float64:
		return val == 0
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}

// IngestPayload decodes a scanned transfer payload and merges it onto dst
// with the parse-merge rule. Anything that is not a JSON object leaves dst
// untouched and reports false; fields that fail validation are skipped.
func IngestPayload(dst *record.Admission, decoded string, now time.Time) bool {
	if dst == nil {
		return false
	}
	partial, _, err := record.DecodePartialJSON(record.KindAdmission, []byte(decoded))
	if err != nil {
		return false
	}
	src, ok := partial.(*record.Admission)
	if !ok {
		return false
	}
	merge.MergeAdmission(dst, src, now)
	return true
}
