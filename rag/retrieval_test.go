package rag

import (
	"os"
	"path/filepath"
	"testing"
)

func testChunks() []Fragment {
	return []Fragment{
		{ID: "marketing_calendar::chunk0", Content: "Summer Beverages 1997 campaign. Dates: 1997-06-01 to 1997-06-30. Focus on Beverages category.", Source: "marketing_calendar"},
		{ID: "marketing_calendar::chunk1", Content: "Winter Classics 1997 campaign. Dates: 1997-12-01 to 1997-12-31. Seasonal products across categories.", Source: "marketing_calendar"},
		{ID: "kpi_definitions::chunk0", Content: "AOV = total revenue / distinct order count. Average order value is computed per period.", Source: "kpi_definitions"},
		{ID: "kpi_definitions::chunk1", Content: "Gross Margin: GM = (price - 0.7 * price) * quantity * (1 - discount). Cost is assumed at 70% of unit price.", Source: "kpi_definitions"},
		{ID: "product_policy::chunk0", Content: "Discontinued products are excluded from active catalog reports.", Source: "product_policy"},
	}
}

func TestRetrieveRanksRelevantFirst(t *testing.T) {
	r := NewRetrieverFromChunks(testChunks())

	results := r.Retrieve("summer beverages campaign dates", 3)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ID != "marketing_calendar::chunk0" {
		t.Errorf("expected summer campaign chunk first, got %s", results[0].ID)
	}
	if results[0].Score < results[1].Score {
		t.Error("results not ordered by descending score")
	}
}

func TestRetrieveEmptyIndex(t *testing.T) {
	r := NewRetrieverFromChunks(nil)
	results := r.Retrieve("anything", 3)
	if results == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(results) != 0 {
		t.Errorf("expected no results from empty index, got %d", len(results))
	}
}

func TestRetrieveTopKBounds(t *testing.T) {
	r := NewRetrieverFromChunks(testChunks())

	results := r.Retrieve("revenue", 100)
	if len(results) != len(testChunks()) {
		t.Errorf("topK larger than corpus should return all chunks, got %d", len(results))
	}

	results = r.Retrieve("revenue", 0)
	if len(results) != 0 {
		t.Errorf("topK of zero should return nothing, got %d", len(results))
	}
}

func TestRetrieveDeterministic(t *testing.T) {
	r := NewRetrieverFromChunks(testChunks())

	first := r.Retrieve("gross margin formula", 3)
	second := r.Retrieve("gross margin formula", 3)

	if len(first) != len(second) {
		t.Fatal("repeated retrieval returned different result counts")
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("position %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestChunkDocument(t *testing.T) {
	content := "# KPI Definitions\n\nAOV = revenue / orders. A standard measure of basket size.\n\nshort\n\nGM = contribution margin after cost of goods, using a 70% cost basis."
	chunks := chunkDocument("kpi_definitions", content)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks (heading and short section skipped), got %d", len(chunks))
	}
	if chunks[0].ID != "kpi_definitions::chunk0" {
		t.Errorf("unexpected chunk ID: %s", chunks[0].ID)
	}
	if chunks[1].ID != "kpi_definitions::chunk1" {
		t.Errorf("unexpected chunk ID: %s", chunks[1].ID)
	}
	if chunks[0].Source != "kpi_definitions" {
		t.Errorf("unexpected source: %s", chunks[0].Source)
	}
}

func TestChunkDocumentSplitsAtHeadingWithoutBlankLine(t *testing.T) {
	content := "Opening paragraph that is long enough to keep around.\n## Campaigns\nSummer Beverages 1997 ran through June of that year."
	chunks := chunkDocument("marketing", content)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].Content != "## Campaigns\nSummer Beverages 1997 ran through June of that year." {
		t.Errorf("heading should stay with its section, got %q", chunks[1].Content)
	}
}

func TestNewRetrieverFromDirectory(t *testing.T) {
	dir := t.TempDir()
	doc := "# Marketing Calendar\n\nSummer Beverages 1997 campaign. Dates: 1997-06-01 to 1997-06-30.\n\nWinter Classics 1997 campaign. Dates: 1997-12-01 to 1997-12-31."
	if err := os.WriteFile(filepath.Join(dir, "marketing_calendar.md"), []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	// Non-markdown files are ignored
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := NewRetriever(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 indexed fragments, got %d", r.Len())
	}

	frag, ok := r.FragmentByID("marketing_calendar::chunk1")
	if !ok {
		t.Fatal("expected to find chunk by ID")
	}
	if frag.Source != "marketing_calendar" {
		t.Errorf("unexpected source: %s", frag.Source)
	}
}

func TestNewRetrieverMissingDirectory(t *testing.T) {
	_, err := NewRetriever("/nonexistent/docs/dir")
	if err == nil {
		t.Error("expected error for missing documents directory")
	}
}
