package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddUnique(t *testing.T) {
	list := AddUnique(nil, "I10 - Hipertensión")
	list = AddUnique(list, "I10 - Hipertensión")
	assert.Equal(t, []string{"I10 - Hipertensión"}, list)

	// Exact match only: case and spacing variants are distinct entries.
	list = AddUnique(list, "i10 - hipertensión")
	assert.Len(t, list, 2)

	list = AddUnique(list, "   ")
	assert.Len(t, list, 2, "blank entries are ignored")
}

func TestUnion_PreservesOrder(t *testing.T) {
	got := Union([]string{"DM2", "HAS"}, []string{"HAS", "Cáncer", "DM2", "EPOC/Asma"})
	assert.Equal(t, []string{"DM2", "HAS", "Cáncer", "EPOC/Asma"}, got)
}

func TestRemoveAndToggle(t *testing.T) {
	list := []string{"DM2", "HAS"}
	assert.Equal(t, []string{"HAS"}, Remove(list, "DM2"))
	assert.Equal(t, []string{"DM2", "HAS"}, list, "Remove does not mutate its input")

	list = Toggle(list, "HAS")
	assert.Equal(t, []string{"DM2"}, list)
	list = Toggle(list, "Cáncer")
	assert.Equal(t, []string{"DM2", "Cáncer"}, list)
}

func TestFormatDiagnosis(t *testing.T) {
	assert.Equal(t, "I10 - Hipertensión", FormatDiagnosis("I10", "Hipertensión"))
	assert.Equal(t, "Hipertensión", FormatDiagnosis(" ", "Hipertensión"))
	assert.Equal(t, "I10", FormatDiagnosis("I10", ""))
	assert.Equal(t, "", FormatDiagnosis("", ""))
}
