package agent

import (
	"strings"

	"github.com/richinex/copilot/rag"
)

// NoConstraints is the sentinel used when planning finds nothing useful,
// so downstream prompts always carry a non-empty constraints section.
const NoConstraints = "No specific constraints"

var formulaKeywords = []string{"AOV", "GM", "Gross Margin"}

var campaignNames = []string{"Summer Beverages", "Winter Classics"}

// PlanConstraints scans retrieved fragments for markers a query needs to
// honor: date-range annotations, formula definitions and named campaign
// references. Matching fragments are concatenated in order; a fragment can
// appear once per marker it matches.
func PlanConstraints(question string, fragments []rag.Fragment) string {
	var parts []string

	for _, frag := range fragments {
		if strings.Contains(frag.Content, "Dates:") {
			parts = append(parts, frag.Content)
		}
		if strings.Contains(frag.Content, "=") && containsAny(frag.Content, formulaKeywords) {
			parts = append(parts, frag.Content)
		}
	}

	lower := strings.ToLower(question)
	if strings.Contains(lower, "summer") || strings.Contains(lower, "winter") {
		for _, frag := range fragments {
			if containsAny(frag.Content, campaignNames) {
				parts = append(parts, frag.Content)
			}
		}
	}

	if len(parts) == 0 {
		return NoConstraints
	}
	return strings.Join(parts, "\n")
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
