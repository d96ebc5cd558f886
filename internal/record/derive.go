package record

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const birthDateLayout = "2006-1-2"

// Glasgow sub-score bounds.
var (
	OcularBounds = [2]int{1, 4}
	VerbalBounds = [2]int{1, 5}
	MotorBounds  = [2]int{1, 6}
)

func parseBirthDate(s string) (time.Time, bool) {
	t, err := time.ParseInLocation(birthDateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ComputeAge returns "<n> años" for a YYYY-MM-DD birth date, counting whole
// elapsed days divided by 365.25. It returns "" for unparsable or future dates.
func ComputeAge(birthDate string, now time.Time) string {
	born, ok := parseBirthDate(birthDate)
	if !ok {
		return ""
	}
	days := math.Floor(now.Sub(born).Hours() / 24)
	years := int(math.Floor(days / 365.25))
	if days < 0 || years < 0 {
		return ""
	}
	return fmt.Sprintf("%d años", years)
}

// ComputeBMI returns weight(kg) / height(m)² with one decimal, or "" when
// either input is missing, non-numeric, or not positive.
func ComputeBMI(weight, heightCm string) string {
	w, err := parseMeasure(weight)
	if err != nil || w <= 0 {
		return ""
	}
	h, err := parseMeasure(heightCm)
	if err != nil || h <= 0 {
		return ""
	}
	m := h / 100
	bmi := w / (m * m)
	if math.IsInf(bmi, 0) || math.IsNaN(bmi) {
		return ""
	}
	return strconv.FormatFloat(bmi, 'f', 1, 64)
}

// parseMeasure accepts a decimal comma as well as a point.
func parseMeasure(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	return strconv.ParseFloat(s, 64)
}

// GlasgowTotal returns o+v+m with each sub-score clamped to its bounds, so the
// result is always in [3,15]. Absent scores count as the lower bound.
func GlasgowTotal(g GlasgowScale) int {
	return clamp(int(g.O), OcularBounds) + clamp(int(g.V), VerbalBounds) + clamp(int(g.M), MotorBounds)
}

func clamp(n int, bounds [2]int) int {
	if n < bounds[0] {
		return bounds[0]
	}
	if n > bounds[1] {
		return bounds[1]
	}
	return n
}

// InBounds reports whether every present sub-score is within its bounds.
func (g GlasgowScale) InBounds() bool {
	for _, c := range []struct {
		v Score
		b [2]int
	}{{g.O, OcularBounds}, {g.V, VerbalBounds}, {g.M, MotorBounds}} {
		if c.v != 0 && (int(c.v) < c.b[0] || int(c.v) > c.b[1]) {
			return false
		}
	}
	return true
}

// SetBirthDate stores the birth date as YYYY-MM-DD and recomputes edad.
func (a *Admission) SetBirthDate(year, month, day int, now time.Time) {
	a.FN = fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	a.Edad = ComputeAge(a.FN, now)
}
