package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frostyWeek(t *testing.T) *WeeklyWeather {
	t.Helper()
	weekly, err := Normalize("Ames, IA", []ForecastPeriod{
		period("Today", ptrFloat(48), "F"),
		period("Tonight", ptrFloat(38), "F"),
		period("Wednesday Night", ptrFloat(31), "F"),
		period("Thursday Night", ptrFloat(34), "F"),
	}, PolicyWeekMinimum)
	require.NoError(t, err)
	return weekly
}

func TestGuidanceFor(t *testing.T) {
	instr := &CropInstruction{
		PerPhaseGuidance: map[string]PhaseGuidance{
			"transplanted": {Description: "Move seedlings outdoors", Steps: []string{"Harden off", "Water in"}},
			"harvested":    {Description: "Pick when red"},
		},
	}

	phase, g := GuidanceFor(instr, PhaseHarvested)
	assert.Equal(t, PhaseHarvested, phase)
	require.NotNil(t, g)
	assert.Equal(t, "Pick when red", g.Description)

	// no sowed guidance, falls back to transplanted
	phase, g = GuidanceFor(instr, PhaseDormant)
	assert.Equal(t, PhaseTransplanted, phase)
	require.NotNil(t, g)
	assert.Equal(t, []string{"Harden off", "Water in"}, g.Steps)

	phase, g = GuidanceFor(nil, PhaseSowed)
	assert.Equal(t, PhaseSowed, phase)
	assert.Nil(t, g)

	phase, g = GuidanceFor(&CropInstruction{}, PhaseSowed)
	assert.Equal(t, PhaseSowed, phase)
	assert.Nil(t, g)
}

func TestVisibleOnCalendar(t *testing.T) {
	assert.False(t, VisibleOnCalendar(CropProgress{CurrentPhase: PhaseCantSowYet}))
	assert.True(t, VisibleOnCalendar(CropProgress{CurrentPhase: PhaseDormant}))
	assert.True(t, VisibleOnCalendar(CropProgress{CurrentPhase: PhaseSowed}))
}

func TestFirstFrostPeriod(t *testing.T) {
	weekly := frostyWeek(t)

	first := FirstFrostPeriod(weekly)
	require.NotNil(t, first)
	assert.Equal(t, "Wednesday Night", first.Name)
	assert.Equal(t, FrostFreeze, first.FrostType)

	assert.Nil(t, FirstFrostPeriod(nil))
	assert.Nil(t, FirstFrostPeriod(&WeeklyWeather{}))
}

func TestFrostRelevant(t *testing.T) {
	hardy := &CropInstruction{Characteristics: CropCharacteristics{FrostTolerant: true}}
	perennial := &CropInstruction{Characteristics: CropCharacteristics{Perennial: true}}
	tender := &CropInstruction{}

	tests := []struct {
		name     string
		progress CropProgress
		month    time.Month
		want     bool
	}{
		{"frost tolerant in summer", CropProgress{CurrentPhase: PhaseHarvested, Instructions: hardy}, time.July, true},
		{"perennial dormant", CropProgress{CurrentPhase: PhaseDormant, Instructions: perennial}, time.June, true},
		{"sowed in winter", CropProgress{CurrentPhase: PhaseSowed, Instructions: tender}, time.February, true},
		{"transplanted in november", CropProgress{CurrentPhase: PhaseTransplanted}, time.November, true},
		{"sowed in spring", CropProgress{CurrentPhase: PhaseSowed, Instructions: tender}, time.April, false},
		{"harvested tender crop in winter", CropProgress{CurrentPhase: PhaseHarvested, Instructions: tender}, time.December, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FrostRelevant(tt.progress, tt.month))
		})
	}
}

func TestFrostAdvice(t *testing.T) {
	weekly := frostyWeek(t)
	perennial := CropProgress{
		Name:         "ASPARAGUS",
		CurrentPhase: PhaseDormant,
		Instructions: &CropInstruction{Characteristics: CropCharacteristics{Perennial: true}},
	}

	advice := FrostAdvice(perennial, weekly, time.October)
	require.NotNil(t, advice)
	assert.Equal(t, "Wednesday Night", advice.PeriodName)
	assert.Equal(t, FrostFreeze, advice.FrostType)
	assert.Contains(t, advice.Message, "Freeze expected on Wednesday Night")

	tender := CropProgress{Name: "TOMATOES", CurrentPhase: PhaseHarvested}
	assert.Nil(t, FrostAdvice(tender, weekly, time.October))

	warm, err := Normalize("Miami, FL", []ForecastPeriod{period("Today", ptrFloat(84), "F")}, PolicyWeekMinimum)
	require.NoError(t, err)
	assert.Nil(t, FrostAdvice(perennial, warm, time.October))
}

func TestFrostAlert(t *testing.T) {
	assert.Equal(t,
		"Frost alert (Wednesday Night): freeze expected with a temperature of 31°F, consider frost protection.",
		FrostAlert(frostyWeek(t)))
	assert.Empty(t, FrostAlert(nil))
}

func TestIsWinterMonth(t *testing.T) {
	winter := map[time.Month]bool{
		time.November: true, time.December: true, time.January: true, time.February: true, time.March: true,
	}
	for m := time.January; m <= time.December; m++ {
		assert.Equal(t, winter[m], IsWinterMonth(m), "month %s", m)
	}
}
