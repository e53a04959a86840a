package sqlgen

import (
	"strings"

	"github.com/richinex/copilot/internal/jsonx"
)

// Fixup applies common repairs to LLM-generated SQL: code fence stripping,
// the Northwind table-name spelling variants, and the non-portable
// EXTRACT(YEAR call. Pure text substitution, no SQL parsing.
func Fixup(sql string) string {
	if sql == "" {
		return sql
	}

	sql = jsonx.StripCodeFences(sql)
	sql = strings.ReplaceAll(sql, "OrderDetails", `"Order Details"`)
	sql = strings.ReplaceAll(sql, "ORDER DETAILS", `"Order Details"`)
	sql = strings.ReplaceAll(sql, "EXTRACT(YEAR", "strftime('%Y'")

	return strings.TrimSpace(sql)
}
