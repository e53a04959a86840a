package sqlgen

import (
	"strings"
	"testing"
)

func TestFromTemplateTop3Products(t *testing.T) {
	sql := FromTemplate("What are the top 3 products by revenue all-time?", "")
	if sql == "" {
		t.Fatal("expected template match for top-3-by-revenue question")
	}
	if !strings.Contains(sql, "LIMIT 3") {
		t.Errorf("expected LIMIT 3 in template, got: %s", sql)
	}
	if !strings.Contains(sql, `"Order Details"`) {
		t.Errorf("expected quoted Order Details table, got: %s", sql)
	}
}

func TestFromTemplateTopThreeSpelledOut(t *testing.T) {
	sql := FromTemplate("Show the top three products by revenue", "")
	if sql == "" {
		t.Fatal("expected template match for spelled-out top three")
	}
}

func TestFromTemplateAOVFromConstraints(t *testing.T) {
	// The question alone doesn't name the period; the constraint text does.
	sql := FromTemplate("What was the AOV during the campaign?", "Winter Classics. Dates: 1997-12-01 to 1997-12-31")
	if sql == "" {
		t.Fatal("expected AOV template match via constraint date")
	}
	if !strings.Contains(sql, "1997-12-01") {
		t.Errorf("expected December date range, got: %s", sql)
	}
}

func TestFromTemplateSummerCategory(t *testing.T) {
	sql := FromTemplate("Which category sold the highest quantity during the summer campaign?", "")
	if !strings.Contains(sql, "SUM(od.Quantity)") {
		t.Errorf("expected quantity aggregation, got: %s", sql)
	}
}

func TestFromTemplateCustomerMargin(t *testing.T) {
	sql := FromTemplate("Which customer had the highest gross margin in 1997?", "")
	if !strings.Contains(sql, "strftime('%Y', o.OrderDate) = '1997'") {
		t.Errorf("expected 1997 year filter, got: %s", sql)
	}
}

func TestFromTemplateNoMatch(t *testing.T) {
	if sql := FromTemplate("How many employees work in London?", ""); sql != "" {
		t.Errorf("expected no template match, got: %s", sql)
	}
}

func TestFromTemplateDeterministic(t *testing.T) {
	question := "What are the top 3 products by revenue?"
	first := FromTemplate(question, "")
	second := FromTemplate(question, "")
	if first != second {
		t.Error("template matching is not deterministic")
	}
}

func TestFromTemplateFirstMatchWins(t *testing.T) {
	// Mentions both beverages revenue and summer category quantity terms;
	// the earlier rule in the ordered set must win.
	sql := FromTemplate("For the summer campaign, which category had the top quantity of beverages revenue?", "")
	if !strings.Contains(sql, "GROUP BY c.CategoryID") {
		t.Errorf("expected first matching rule (category quantity) to win, got: %s", sql)
	}
}

func TestFixupTableSpelling(t *testing.T) {
	sql := Fixup("SELECT * FROM OrderDetails WHERE OrderID = 1")
	if !strings.Contains(sql, `"Order Details"`) {
		t.Errorf("expected table name fix, got: %s", sql)
	}
}

func TestFixupDateFunction(t *testing.T) {
	sql := Fixup("SELECT EXTRACT(YEAR, OrderDate) FROM Orders")
	if !strings.Contains(sql, "strftime('%Y'") {
		t.Errorf("expected strftime rewrite, got: %s", sql)
	}
	if strings.Contains(sql, "EXTRACT") {
		t.Errorf("EXTRACT left in place: %s", sql)
	}
}

func TestFixupCodeFence(t *testing.T) {
	sql := Fixup("```sql\nSELECT 1\n```")
	if sql != "SELECT 1" {
		t.Errorf("expected bare SQL, got: %q", sql)
	}
}

func TestFixupEmpty(t *testing.T) {
	if got := Fixup(""); got != "" {
		t.Errorf("expected empty passthrough, got: %q", got)
	}
}
