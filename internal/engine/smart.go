package engine

import (
	"fmt"
	"strings"
	"time"
)

// ResolvePhase determines a crop's phase for the given month from its
// growing windows. Windows are checked sowing, transplanting, harvesting and
// the first one containing month wins. A nil instruction is treated as a
// non-perennial crop without windows.
func ResolvePhase(instr *CropInstruction, month time.Month) PhaseResult {
	var perennial bool
	var windows GrowingWindow
	if instr != nil {
		perennial = instr.Characteristics.Perennial
		windows = instr.Growing
		if windows == nil && len(instr.Windows) > 0 {
			windows = ParseGrowingWindow(instr.Windows)
		}
	}

	if instr == nil || windows.Empty() {
		return outsideWindows(perennial, "no growing windows are recorded for this crop")
	}

	for _, kind := range windowOrder {
		set := windows[kind]
		if set.Has(month) {
			return PhaseResult{
				Phase:       windowPhase[kind],
				Explanation: fmt.Sprintf("%s is within the %s window (%s)", monthLabel(month), kind, set),
			}
		}
	}

	return outsideWindows(perennial, fmt.Sprintf("%s is outside the sowing, transplanting and harvesting windows", monthLabel(month)))
}

func outsideWindows(perennial bool, reason string) PhaseResult {
	if perennial {
		return PhaseResult{
			Phase:       PhaseDormant,
			Explanation: reason + "; perennial crop is dormant",
		}
	}
	return PhaseResult{
		Phase:       PhaseCantSowYet,
		Explanation: reason + "; not yet time to sow",
	}
}

func monthLabel(m time.Month) string {
	if m < time.January || m > time.December {
		return fmt.Sprintf("month %d", int(m))
	}
	return m.String()
}

// Group collects records by lower-cased commodity name in first-seen order,
// resolves each group's instruction and phase, and keeps every statistic row
// in input order.
func Group(records []CropRecord, catalog Catalog, month time.Month) []CropProgress {
	groups := []CropProgress{}
	index := map[string]int{}

	for _, r := range records {
		key := strings.ToLower(strings.TrimSpace(r.CommodityName))

		i, seen := index[key]
		if !seen {
			instr := Match(r.CommodityName, catalog)
			phase := ResolvePhase(instr, month)
			groups = append(groups, CropProgress{
				Name:             strings.TrimSpace(r.CommodityName),
				CurrentPhase:     phase.Phase,
				PhaseExplanation: phase.Explanation,
				Statistics:       []Statistic{},
				Instructions:     instr,
			})
			i = len(groups) - 1
			index[key] = i
		}

		groups[i].Statistics = append(groups[i].Statistics, Statistic{
			Stat:  r.StatisticCategory,
			Value: r.Value,
			Unit:  r.Unit,
			Year:  r.Year,
		})
	}

	return groups
}
