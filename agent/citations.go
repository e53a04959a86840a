package agent

import (
	"sort"
	"strings"

	"github.com/richinex/copilot/rag"
)

// knownTables are the dataset tables recognized as citable sources.
var knownTables = []string{
	"Orders", "Order Details", "Products", "Customers",
	"Categories", "Suppliers", "Employees",
}

// ExtractCitations collects the evidence behind an answer: the IDs of every
// retrieved fragment plus each known table name that appears in the final
// query, matched case-insensitively. The result is deduplicated and sorted.
func ExtractCitations(fragments []rag.Fragment, query string) []string {
	seen := make(map[string]struct{})
	for _, frag := range fragments {
		seen[frag.ID] = struct{}{}
	}

	lowerQuery := strings.ToLower(query)
	for _, table := range knownTables {
		if strings.Contains(lowerQuery, strings.ToLower(table)) {
			seen[table] = struct{}{}
		}
	}

	citations := make([]string, 0, len(seen))
	for c := range seen {
		citations = append(citations, c)
	}
	sort.Strings(citations)
	return citations
}
