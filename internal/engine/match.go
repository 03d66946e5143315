package engine

import "strings"

// Match finds the catalog instruction for a reported commodity name. It
// tries the lower-cased name, then whitespace replaced by underscores, then
// naive singular forms of that. A nil result means the crop is not cataloged.
func Match(commodity string, catalog Catalog) *CropInstruction {
	if len(catalog) == 0 {
		return nil
	}

	for _, key := range matchCandidates(commodity) {
		if instr, ok := catalog[key]; ok && instr != nil {
			return instr
		}
	}
	return nil
}

// MatchKey is Match but returns the catalog key that matched
func MatchKey(commodity string, catalog Catalog) (string, bool) {
	for _, key := range matchCandidates(commodity) {
		if instr, ok := catalog[key]; ok && instr != nil {
			return key, true
		}
	}
	return "", false
}

func matchCandidates(commodity string) []string {
	lower := strings.ToLower(strings.TrimSpace(commodity))
	if lower == "" {
		return nil
	}
	underscored := strings.Join(strings.Fields(lower), "_")

	candidates := []string{lower, underscored}
	if s, ok := strings.CutSuffix(underscored, "s"); ok && s != "" {
		candidates = append(candidates, s)
	}
	if s, ok := strings.CutSuffix(underscored, "es"); ok && s != "" {
		candidates = append(candidates, s)
	}
	if s, ok := strings.CutSuffix(underscored, "ies"); ok && s != "" {
		candidates = append(candidates, s+"y")
	}
	return candidates
}
