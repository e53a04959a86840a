package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/richinex/copilot/rag"
	"github.com/richinex/copilot/sqltool"
)

type fakeModel struct {
	route        string
	routeErr     error
	query        string
	queryErrs    []error // one per GenerateQuery call, nil-padded
	answer       string
	synthesisErr error

	routeCalls     int
	queryCalls     int
	synthesisCalls int
}

func (f *fakeModel) Route(ctx context.Context, question string) (string, error) {
	f.routeCalls++
	return f.route, f.routeErr
}

func (f *fakeModel) GenerateQuery(ctx context.Context, question, schema, constraints string) (string, error) {
	f.queryCalls++
	if f.queryCalls <= len(f.queryErrs) && f.queryErrs[f.queryCalls-1] != nil {
		return "", f.queryErrs[f.queryCalls-1]
	}
	return f.query, nil
}

func (f *fakeModel) Synthesize(ctx context.Context, question, formatHint, queryResults, docFragments string) (string, error) {
	f.synthesisCalls++
	if f.synthesisErr != nil {
		return "", f.synthesisErr
	}
	return f.answer, nil
}

type fakeRetriever struct {
	fragments []rag.Fragment
	calls     int
}

func (f *fakeRetriever) Retrieve(query string, topK int) []rag.Fragment {
	f.calls++
	if f.fragments == nil {
		return []rag.Fragment{}
	}
	return f.fragments
}

type fakeExecutor struct {
	results []sqltool.Result // one per Execute call; last repeats
	calls   int
}

func (f *fakeExecutor) Execute(ctx context.Context, query string) sqltool.Result {
	f.calls++
	if len(f.results) == 0 {
		return sqltool.Result{Columns: []string{}, Rows: [][]interface{}{}}
	}
	idx := f.calls - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	return f.results[idx]
}

func (f *fakeExecutor) SchemaSummary() string {
	return "Table: Products\n  ProductName (TEXT)"
}

func docFragments() []rag.Fragment {
	return []rag.Fragment{
		{ID: "marketing.md::chunk0", Content: "Summer Beverages 1997. Dates: 1997-06-01 to 1997-06-30", Source: "marketing.md"},
		{ID: "kpi.md::chunk1", Content: "AOV = total revenue / number of orders", Source: "kpi.md"},
	}
}

func oneRowResult() sqltool.Result {
	return sqltool.Result{
		Columns: []string{"ProductName", "Revenue"},
		Rows:    [][]interface{}{{"Chai", 1500.5}},
	}
}

func TestRunHybridHappyPath(t *testing.T) {
	model := &fakeModel{route: "hybrid", query: "SELECT ProductName FROM Products", answer: "42"}
	retriever := &fakeRetriever{fragments: docFragments()}
	executor := &fakeExecutor{results: []sqltool.Result{oneRowResult()}}

	out := NewOrchestrator(model, retriever, executor).Run(context.Background(), Question{
		ID: "q1", Text: "How many summer orders?", FormatHint: "int",
	})

	if out.FinalAnswer.Int() != 42 {
		t.Errorf("expected answer 42, got %v", out.FinalAnswer.Value())
	}
	if out.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %v", out.Confidence)
	}
	if retriever.calls != 1 || executor.calls != 1 {
		t.Errorf("expected one retrieval and one execution, got %d and %d", retriever.calls, executor.calls)
	}
	if len(out.Citations) == 0 {
		t.Error("expected citations for hybrid route")
	}
	if out.SQL == "" {
		t.Error("expected SQL in output")
	}
}

func TestRunRAGRouteNeverExecutesSQL(t *testing.T) {
	model := &fakeModel{route: "rag", answer: "Returns are accepted within 30 days."}
	retriever := &fakeRetriever{fragments: docFragments()}
	executor := &fakeExecutor{}

	out := NewOrchestrator(model, retriever, executor).Run(context.Background(), Question{
		ID: "q2", Text: "What is the return policy?", FormatHint: "string",
	})

	if executor.calls != 0 {
		t.Errorf("rag route must not execute SQL, got %d executions", executor.calls)
	}
	if model.queryCalls != 0 {
		t.Errorf("rag route must not generate SQL, got %d generations", model.queryCalls)
	}
	if out.SQL != "" {
		t.Errorf("rag route must leave SQL empty, got %q", out.SQL)
	}
	if out.FinalAnswer.Text() != "Returns are accepted within 30 days." {
		t.Errorf("unexpected answer: %q", out.FinalAnswer.Text())
	}
}

func TestRunSQLRouteNeverRetrieves(t *testing.T) {
	model := &fakeModel{route: "sql", query: "SELECT COUNT(*) FROM Orders", answer: "830"}
	retriever := &fakeRetriever{}
	executor := &fakeExecutor{results: []sqltool.Result{oneRowResult()}}

	out := NewOrchestrator(model, retriever, executor).Run(context.Background(), Question{
		ID: "q3", Text: "How many orders are there?", FormatHint: "int",
	})

	if retriever.calls != 0 {
		t.Errorf("sql route must not retrieve, got %d retrievals", retriever.calls)
	}
	if out.FinalAnswer.Int() != 830 {
		t.Errorf("expected 830, got %v", out.FinalAnswer.Value())
	}
	// Constraints still get planned, against an empty fragment set.
	if model.queryCalls != 1 {
		t.Errorf("expected one generation, got %d", model.queryCalls)
	}
}

func TestRunUnrecognizedRouteIsFatal(t *testing.T) {
	model := &fakeModel{route: "graph"}
	executor := &fakeExecutor{}
	retriever := &fakeRetriever{}

	out := NewOrchestrator(model, retriever, executor).Run(context.Background(), Question{
		ID: "q4", Text: "anything", FormatHint: "int",
	})

	if out.FinalAnswer.IsSet() {
		t.Error("expected no answer for unrecognized route")
	}
	if out.Confidence != 0.0 {
		t.Errorf("expected confidence 0.0, got %v", out.Confidence)
	}
	if !strings.Contains(out.Explanation, "unrecognized route") {
		t.Errorf("expected failure reason in explanation, got %q", out.Explanation)
	}
	if model.synthesisCalls != 0 || retriever.calls != 0 || executor.calls != 0 {
		t.Error("nothing past routing should run after a routing failure")
	}
}

func TestRunRoutingErrorIsFatal(t *testing.T) {
	model := &fakeModel{routeErr: errors.New("provider unavailable")}

	out := NewOrchestrator(model, &fakeRetriever{}, &fakeExecutor{}).Run(context.Background(), Question{
		ID: "q5", Text: "anything", FormatHint: "string",
	})

	if out.FinalAnswer.IsSet() || out.Confidence != 0.0 {
		t.Errorf("expected degraded output, got answer=%v confidence=%v", out.FinalAnswer.Value(), out.Confidence)
	}
}

func TestRunExecutionFailureTriggersRepair(t *testing.T) {
	model := &fakeModel{route: "sql", query: "SELECT * FROM Ordersz", answer: "5"}
	executor := &fakeExecutor{results: []sqltool.Result{
		{Columns: []string{}, Rows: [][]interface{}{}, Err: "no such table: Ordersz"},
		oneRowResult(),
	}}

	out := NewOrchestrator(model, &fakeRetriever{}, executor).Run(context.Background(), Question{
		ID: "q6", Text: "count", FormatHint: "int",
	})

	if model.queryCalls != 2 {
		t.Errorf("expected regeneration after failed execution, got %d generations", model.queryCalls)
	}
	if executor.calls != 2 {
		t.Errorf("expected re-execution, got %d executions", executor.calls)
	}
	if out.FinalAnswer.Int() != 5 {
		t.Errorf("expected 5, got %v", out.FinalAnswer.Value())
	}
	// One repair costs 0.15.
	if math.Abs(out.Confidence-0.85) > 1e-9 {
		t.Errorf("expected confidence 0.85, got %v", out.Confidence)
	}

	var repaired *TraceEvent
	for i := range out.Trace {
		if out.Trace[i].Step == "repair" {
			repaired = &out.Trace[i]
		}
	}
	if repaired == nil || repaired.Kind != FailureExecution {
		t.Errorf("expected repair trace event classified as execution failure, got %+v", repaired)
	}
}

func TestRunRepairBudgetIsHardCeiling(t *testing.T) {
	failed := sqltool.Result{Columns: []string{}, Rows: [][]interface{}{}, Err: "syntax error"}
	model := &fakeModel{route: "sql", query: "SELEC broken", answer: "0"}
	executor := &fakeExecutor{results: []sqltool.Result{failed}}

	out := NewOrchestrator(model, &fakeRetriever{}, executor).Run(context.Background(), Question{
		ID: "q7", Text: "count", FormatHint: "int",
	})

	// Initial attempt plus exactly two repairs.
	if model.queryCalls != 3 {
		t.Errorf("expected 3 generations, got %d", model.queryCalls)
	}
	if executor.calls != 3 {
		t.Errorf("expected 3 executions, got %d", executor.calls)
	}
	if model.synthesisCalls != 1 {
		t.Errorf("synthesis must still run after budget exhaustion, got %d calls", model.synthesisCalls)
	}
	// Two repairs and zero rows: 1.0 - 0.30 - 0.20.
	if math.Abs(out.Confidence-0.5) > 1e-9 {
		t.Errorf("expected confidence 0.5, got %v", out.Confidence)
	}
}

func TestRunDoubleGenerationFailureShipsDegradedAnswer(t *testing.T) {
	genErr := errors.New("model timeout")
	model := &fakeModel{
		route:     "hybrid",
		queryErrs: []error{genErr, genErr, genErr},
		answer:    "0",
	}
	executor := &fakeExecutor{}

	out := NewOrchestrator(model, &fakeRetriever{}, executor).Run(context.Background(), Question{
		ID: "q8", Text: "summer revenue?", FormatHint: "int",
	})

	if executor.calls != 0 {
		t.Errorf("execution must be skipped when generation failed, got %d calls", executor.calls)
	}
	if model.queryCalls != 3 {
		t.Errorf("expected 3 generation attempts, got %d", model.queryCalls)
	}
	if !out.FinalAnswer.IsSet() {
		t.Error("synthesis should still produce an answer from empty results")
	}
	// Two repairs, zero rows, zero fragments on hybrid: 1.0 - 0.30 - 0.20 - 0.20.
	if math.Abs(out.Confidence-0.3) > 1e-9 {
		t.Errorf("expected confidence 0.3, got %v", out.Confidence)
	}
}

func TestRunValidationFailureTriggersRegeneration(t *testing.T) {
	// The model keeps answering with a dict while the hint asks for a
	// list, so every validation fails and the run burns the full budget,
	// then ships the best-effort answer.
	model := &fakeModel{route: "sql", query: "SELECT 1 AS n", answer: `{"n": 1}`}
	executor := &fakeExecutor{results: []sqltool.Result{oneRowResult()}}

	out := NewOrchestrator(model, &fakeRetriever{}, executor).Run(context.Background(), Question{
		ID: "q9", Text: "count", FormatHint: "list[str]",
	})

	if model.queryCalls != 3 {
		t.Errorf("expected 3 generations, got %d", model.queryCalls)
	}
	if model.synthesisCalls != 3 {
		t.Errorf("expected 3 synthesis attempts, got %d", model.synthesisCalls)
	}
	if out.FinalAnswer.Format() != FormatDict {
		t.Errorf("expected best-effort dict answer, got format %v", out.FinalAnswer.Format())
	}
	// Two repairs: 1.0 - 0.30.
	if math.Abs(out.Confidence-0.7) > 1e-9 {
		t.Errorf("expected confidence 0.7, got %v", out.Confidence)
	}
}

func TestRunMissingCitationsTriggerRepair(t *testing.T) {
	// A query touching no known table produces no citations on a sql
	// route, which validation treats as repairable.
	model := &fakeModel{route: "sql", query: "SELECT 1", answer: "1"}
	executor := &fakeExecutor{results: []sqltool.Result{oneRowResult()}}

	out := NewOrchestrator(model, &fakeRetriever{}, executor).Run(context.Background(), Question{
		ID: "q9b", Text: "count", FormatHint: "int",
	})

	if model.queryCalls != 3 {
		t.Errorf("expected 3 generations, got %d", model.queryCalls)
	}
	if len(out.Citations) != 0 {
		t.Errorf("expected empty citations, got %v", out.Citations)
	}
}

func TestRunSynthesisFailureIsFatal(t *testing.T) {
	model := &fakeModel{route: "rag", synthesisErr: errors.New("provider error")}
	retriever := &fakeRetriever{fragments: docFragments()}

	out := NewOrchestrator(model, retriever, &fakeExecutor{}).Run(context.Background(), Question{
		ID: "q10", Text: "policy?", FormatHint: "string",
	})

	if out.FinalAnswer.IsSet() {
		t.Error("expected no answer after synthesis failure")
	}
	if out.Confidence != 0.0 {
		t.Errorf("expected confidence 0.0, got %v", out.Confidence)
	}
	if !strings.Contains(out.Explanation, "synthesis failed") {
		t.Errorf("expected synthesis failure in explanation, got %q", out.Explanation)
	}
	if len(out.Citations) != 0 {
		t.Errorf("expected empty citations, got %v", out.Citations)
	}
}

func TestRunTemplateMatchSkipsModelGeneration(t *testing.T) {
	model := &fakeModel{route: "sql", answer: "3"}
	executor := &fakeExecutor{results: []sqltool.Result{oneRowResult()}}

	out := NewOrchestrator(model, &fakeRetriever{}, executor).Run(context.Background(), Question{
		ID: "q11", Text: "What are the top 3 products by revenue all-time?", FormatHint: "int",
	})

	if model.queryCalls != 0 {
		t.Errorf("template catalog should answer without the model, got %d generations", model.queryCalls)
	}
	if !strings.Contains(out.SQL, `"Order Details"`) {
		t.Errorf("expected fixed-up template SQL, got %q", out.SQL)
	}
}

func TestRunTracePerTransition(t *testing.T) {
	model := &fakeModel{route: "hybrid", query: "SELECT 1", answer: "1"}
	retriever := &fakeRetriever{fragments: docFragments()}
	executor := &fakeExecutor{results: []sqltool.Result{oneRowResult()}}

	out := NewOrchestrator(model, retriever, executor).Run(context.Background(), Question{
		ID: "q12", Text: "how many?", FormatHint: "int",
	})

	steps := make([]string, 0, len(out.Trace))
	for _, ev := range out.Trace {
		steps = append(steps, ev.Step)
	}
	want := []string{"router", "retriever", "planner", "query_generator", "executor", "synthesizer", "validator"}
	if fmt.Sprint(steps) != fmt.Sprint(want) {
		t.Errorf("trace steps mismatch:\n got %v\nwant %v", steps, want)
	}
}

func TestRunContextPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := &fakeModel{route: "sql", query: "SELECT 1", answer: "1"}
	// A canceled context still drives the machine to Done; the fakes
	// ignore it, so the run completes normally.
	out := NewOrchestrator(model, &fakeRetriever{}, &fakeExecutor{results: []sqltool.Result{oneRowResult()}}).
		Run(ctx, Question{ID: "q13", Text: "count", FormatHint: "int"})
	if out.ID != "q13" {
		t.Errorf("expected output for q13, got %q", out.ID)
	}
}
