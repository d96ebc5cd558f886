package record

import (
	"regexp"
	"strings"
)

// LintResult contains the results of linting a record.
type LintResult struct {
	Valid         bool     `json:"valid"`
	MissingFields []string `json:"missing_fields,omitempty"` // fields required before export
	Warnings      []Issue  `json:"warnings,omitempty"`       // suspicious values that do not block export
}

// bloodPressurePattern matches "120/80".
var bloodPressurePattern = regexp.MustCompile(`^\d{2,3}\s*/\s*\d{2,3}$`)

// Lint checks a record before it leaves the session. Only missing required
// fields make it invalid; warnings are informational.
func Lint(r Record) *LintResult {
	result := &LintResult{Valid: true}

	if strings.TrimSpace(r.PatientName()) == "" {
		result.MissingFields = append(result.MissingFields, "nombre")
		result.Valid = false
	}

	switch rec := r.(type) {
	case *Admission:
		result.Warnings = append(result.Warnings, lintVitals(rec.Signos)...)
		result.Warnings = append(result.Warnings, lintGlasgow(rec.G)...)
		if rec.FN != "" {
			if _, ok := parseBirthDate(rec.FN); !ok {
				result.Warnings = append(result.Warnings, Issue{Field: "fn", Reason: "not a YYYY-MM-DD date"})
			}
		}
	case *Evolution:
		result.Warnings = append(result.Warnings, lintVitals(rec.Signos)...)
		result.Warnings = append(result.Warnings, lintGlasgow(rec.G)...)
	}

	return result
}

func lintVitals(s VitalSigns) []Issue {
	var issues []Issue
	for _, vs := range VitalSignOrder {
		value := strings.TrimSpace(s.Value(vs.Key))
		if value == "" || vs.Key == "imc" {
			continue
		}
		if vs.Key == "ta" {
			if !bloodPressurePattern.MatchString(value) {
				issues = append(issues, Issue{Field: "signos.ta", Reason: "expected systolic/diastolic, e.g. 120/80"})
			}
			continue
		}
		if _, err := parseMeasure(value); err != nil {
			issues = append(issues, Issue{Field: "signos." + vs.Key, Reason: "not a number"})
		}
	}
	return issues
}

func lintGlasgow(g GlasgowScale) []Issue {
	copyG := g
	return checkGlasgow(&copyG, "g")
}
