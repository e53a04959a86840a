package jsonx

import (
	"strings"
	"testing"
)

func TestExtractObjectPure(t *testing.T) {
	got, err := ExtractObject(`{"name": "test", "value": 42}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"name": "test", "value": 42}` {
		t.Errorf("unexpected extraction: %s", got)
	}
}

func TestExtractObjectWithPrefix(t *testing.T) {
	got, err := ExtractObject(`Here is the result: {"value": 42}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"value": 42}` {
		t.Errorf("unexpected extraction: %s", got)
	}
}

func TestExtractObjectCodeFence(t *testing.T) {
	response := "```json\n{\"value\": 42}\n```"
	got, err := ExtractObject(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"value": 42}` {
		t.Errorf("unexpected extraction: %s", got)
	}
}

func TestExtractArray(t *testing.T) {
	got, err := ExtractArray(`The top products are: [{"product": "Chai"}, {"product": "Chang"}]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, "[") || !strings.HasSuffix(got, "]") {
		t.Errorf("expected array span, got %s", got)
	}
}

func TestExtractObjectInvalid(t *testing.T) {
	_, err := ExtractObject("no json here at all")
	if err == nil {
		t.Fatal("expected error for response without JSON")
	}
}

func TestUnmarshal(t *testing.T) {
	var out struct {
		Route string `json:"route"`
	}
	if err := Unmarshal("Routing decision: {\"route\": \"hybrid\"}", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Route != "hybrid" {
		t.Errorf("expected hybrid, got %s", out.Route)
	}
}

func TestStripCodeFencesSQL(t *testing.T) {
	got := StripCodeFences("```sql\nSELECT 1\n```")
	if got != "SELECT 1" {
		t.Errorf("expected bare SQL, got %q", got)
	}
}

func TestStripCodeFencesNoFence(t *testing.T) {
	got := StripCodeFences("SELECT 1")
	if got != "SELECT 1" {
		t.Errorf("expected unchanged input, got %q", got)
	}
}
