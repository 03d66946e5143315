package engine

import (
	"fmt"
	"time"
)

// guidanceFallback is the order used when a crop has no guidance for its
// current phase
var guidanceFallback = []Phase{PhaseSowed, PhaseTransplanted, PhaseHarvested}

// GuidanceFor returns the guidance for phase, or the first available of
// sowed, transplanted, harvested. The returned phase names the guidance
// actually used; nil means the crop has none.
func GuidanceFor(instr *CropInstruction, phase Phase) (Phase, *PhaseGuidance) {
	if instr == nil || len(instr.PerPhaseGuidance) == 0 {
		return phase, nil
	}
	if g, ok := instr.PerPhaseGuidance[string(phase)]; ok {
		return phase, &g
	}
	for _, p := range guidanceFallback {
		if g, ok := instr.PerPhaseGuidance[string(p)]; ok {
			return p, &g
		}
	}
	return phase, nil
}

// VisibleOnCalendar is false for crops that cannot be sown yet; those are
// hidden from the calendar entirely
func VisibleOnCalendar(p CropProgress) bool {
	return p.CurrentPhase != PhaseCantSowYet
}

// IsWinterMonth reports whether m falls in the November-March frost season
func IsWinterMonth(m time.Month) bool {
	switch m {
	case time.November, time.December, time.January, time.February, time.March:
		return true
	default:
		return false
	}
}

// FirstFrostPeriod returns the earliest period with frost risk, or nil
func FirstFrostPeriod(w *WeeklyWeather) *AnnotatedPeriod {
	if w == nil {
		return nil
	}
	for i := range w.Periods {
		if w.Periods[i].FrostRisk {
			return &w.Periods[i]
		}
	}
	return nil
}

// FrostRelevant decides whether frost warnings apply to a crop: hardy and
// perennial crops are always flagged, and freshly sown or transplanted crops
// are flagged during the winter months.
func FrostRelevant(p CropProgress, month time.Month) bool {
	if p.Instructions != nil {
		c := p.Instructions.Characteristics
		if c.FrostTolerant || c.Perennial {
			return true
		}
	}
	switch p.CurrentPhase {
	case PhaseSowed, PhaseTransplanted:
		return IsWinterMonth(month)
	default:
		return false
	}
}

// FrostAdvice builds the frost advisory for a crop, or nil when the week has
// no frost risk or the crop is not affected
func FrostAdvice(p CropProgress, w *WeeklyWeather, month time.Month) *FrostAdvisory {
	period := FirstFrostPeriod(w)
	if period == nil || !FrostRelevant(p, month) {
		return nil
	}

	var label string
	switch period.FrostType {
	case FrostFreeze:
		label = "Freeze"
	case FrostFrost:
		label = "Frost"
	default:
		label = "Cold"
	}

	return &FrostAdvisory{
		PeriodName: period.Name,
		FrostType:  period.FrostType,
		Message: fmt.Sprintf("%s expected on %s. Protect frost-sensitive crops and ensure perennials are mulched or covered.",
			label, period.Name),
	}
}

// FrostAlert is the week-level banner text, empty when there is no risk
func FrostAlert(w *WeeklyWeather) string {
	period := FirstFrostPeriod(w)
	if period == nil {
		return ""
	}

	kind := string(period.FrostType)
	if kind == "" {
		kind = "possible frost"
	}
	msg := fmt.Sprintf("Frost alert (%s): %s expected", period.Name, kind)
	if period.TemperatureValue != nil {
		msg += fmt.Sprintf(" with a temperature of %s°%s", formatTemp(*period.TemperatureValue), period.TemperatureUnit)
	}
	return msg + ", consider frost protection."
}
