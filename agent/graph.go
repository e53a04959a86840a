package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/richinex/copilot/sqlgen"
)

// State identifies one node of the pipeline's state machine.
type State int

const (
	StateRouting State = iota
	StateRetrieving
	StatePlanning
	StateGeneratingQuery
	StateExecuting
	StateSynthesizing
	StateValidating
	StateRepairing
	StateDone
)

// String returns the state's name for traces and verbose output.
func (s State) String() string {
	switch s {
	case StateRouting:
		return "routing"
	case StateRetrieving:
		return "retrieving"
	case StatePlanning:
		return "planning"
	case StateGeneratingQuery:
		return "generating_query"
	case StateExecuting:
		return "executing"
	case StateSynthesizing:
		return "synthesizing"
	case StateValidating:
		return "validating"
	case StateRepairing:
		return "repairing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// MaxRepairs is the hard ceiling on repair attempts per question, shared
// between execution failures and validation failures.
const MaxRepairs = 2

// Orchestrator drives one question at a time through the state machine.
// Safe for concurrent runs: the ports are shared read-only and every run
// threads its own state.
type Orchestrator struct {
	model     LanguageModel
	retriever Retriever
	executor  QueryExecutor
	topK      int
	verbose   bool
}

// NewOrchestrator wires the pipeline's three ports together.
func NewOrchestrator(model LanguageModel, retriever Retriever, executor QueryExecutor) *Orchestrator {
	return &Orchestrator{
		model:     model,
		retriever: retriever,
		executor:  executor,
		topK:      3,
	}
}

// WithTopK sets how many fragments retrieval returns.
func (o *Orchestrator) WithTopK(k int) *Orchestrator {
	if k > 0 {
		o.topK = k
	}
	return o
}

// WithVerbose enables per-state progress output.
func (o *Orchestrator) WithVerbose(verbose bool) *Orchestrator {
	o.verbose = verbose
	return o
}

// Run answers one question, advancing the state machine until it reaches
// the terminal state, and returns the run's output record.
func (o *Orchestrator) Run(ctx context.Context, q Question) Output {
	rs := NewRunState(q)
	state := StateRouting
	for state != StateDone {
		state, rs = o.step(ctx, state, rs)
	}
	return buildOutput(rs)
}

// step executes one state and returns the successor plus updated state.
func (o *Orchestrator) step(ctx context.Context, state State, rs RunState) (State, RunState) {
	if o.verbose {
		fmt.Printf("[%s] repairs=%d\n", state, rs.RepairCount)
	}
	switch state {
	case StateRouting:
		return o.route(ctx, rs)
	case StateRetrieving:
		return o.retrieve(rs)
	case StatePlanning:
		return o.plan(rs)
	case StateGeneratingQuery:
		return o.generateQuery(ctx, rs)
	case StateExecuting:
		return o.execute(ctx, rs)
	case StateSynthesizing:
		return o.synthesize(ctx, rs)
	case StateValidating:
		return o.validate(rs)
	case StateRepairing:
		return o.repair(rs)
	default:
		return StateDone, rs
	}
}

// route classifies the question. An error or an out-of-set answer is fatal:
// the run terminates with a degraded output rather than guessing a route.
func (o *Orchestrator) route(ctx context.Context, rs RunState) (State, RunState) {
	raw, err := o.model.Route(ctx, rs.Question.Text)
	if err != nil {
		rs.Err = fmt.Sprintf("routing failed: %v", err)
		rs.Failure = FailureRouting
		rs.Trace = append(rs.Trace, TraceEvent{Step: "router", Error: rs.Err, Kind: FailureRouting})
		return StateDone, rs
	}
	route := Route(raw)
	if !ValidRoute(route) {
		rs.Err = fmt.Sprintf("routing failed: unrecognized route %q", raw)
		rs.Failure = FailureRouting
		rs.Trace = append(rs.Trace, TraceEvent{Step: "router", Error: rs.Err, Kind: FailureRouting})
		return StateDone, rs
	}
	rs.Route = route
	rs.Trace = append(rs.Trace, TraceEvent{Step: "router", Route: string(route)})
	if o.verbose {
		fmt.Printf("[router] route=%s\n", route)
	}

	if route == RouteSQL {
		return StatePlanning, rs
	}
	return StateRetrieving, rs
}

// retrieve searches the document index. Zero hits is a valid outcome; the
// run proceeds with an empty fragment set.
func (o *Orchestrator) retrieve(rs RunState) (State, RunState) {
	rs.Fragments = o.retriever.Retrieve(rs.Question.Text, o.topK)
	ids := make([]string, 0, len(rs.Fragments))
	for _, frag := range rs.Fragments {
		ids = append(ids, frag.ID)
	}
	rs.Trace = append(rs.Trace, TraceEvent{Step: "retriever", FragmentIDs: ids})
	if o.verbose {
		fmt.Printf("[retriever] fragments=%d\n", len(rs.Fragments))
	}

	if rs.Route == RouteRAG {
		return StateSynthesizing, rs
	}
	return StatePlanning, rs
}

// plan extracts query constraints from the retrieved fragments.
func (o *Orchestrator) plan(rs RunState) (State, RunState) {
	rs.Constraints = PlanConstraints(rs.Question.Text, rs.Fragments)
	rs.Trace = append(rs.Trace, TraceEvent{Step: "planner", Constraints: rs.Constraints})
	return StateGeneratingQuery, rs
}

// generateQuery tries the template catalog first and falls back to the
// model. Both paths run the deterministic fix-up pass; a model failure is
// recorded as repairable, never returned.
func (o *Orchestrator) generateQuery(ctx context.Context, rs RunState) (State, RunState) {
	if sql := sqlgen.FromTemplate(rs.Question.Text, rs.Constraints); sql != "" {
		rs.SQL = sqlgen.Fixup(sql)
		rs.Err = ""
		rs.Failure = FailureNone
		rs.Trace = append(rs.Trace, TraceEvent{Step: "query_generator", Method: "template", SQL: rs.SQL})
		return StateExecuting, rs
	}

	sql, err := o.model.GenerateQuery(ctx, rs.Question.Text, o.executor.SchemaSummary(), rs.Constraints)
	if err != nil {
		rs.Err = fmt.Sprintf("SQL generation failed: %v", err)
		rs.Failure = FailureGeneration
		rs.Trace = append(rs.Trace, TraceEvent{Step: "query_generator", Method: "llm", Error: rs.Err, Kind: FailureGeneration})
		return StateExecuting, rs
	}
	rs.SQL = sqlgen.Fixup(sql)
	rs.Err = ""
	rs.Failure = FailureNone
	rs.Trace = append(rs.Trace, TraceEvent{Step: "query_generator", Method: "llm", SQL: rs.SQL})
	return StateExecuting, rs
}

// execute runs the query. Skipped when generation already failed. An
// execution failure triggers repair while budget remains; once the budget
// is spent the run carries empty results into synthesis.
func (o *Orchestrator) execute(ctx context.Context, rs RunState) (State, RunState) {
	if rs.Err == "" {
		result := o.executor.Execute(ctx, rs.SQL)
		rs.SQLResult = result
		success := !result.Failed()
		rows := len(result.Rows)
		if result.Failed() {
			rs.Err = fmt.Sprintf("SQL execution failed: %s", result.Err)
			rs.Failure = FailureExecution
			rs.Trace = append(rs.Trace, TraceEvent{Step: "executor", Success: &success, Rows: &rows, Error: rs.Err, Kind: FailureExecution})
		} else {
			rs.Trace = append(rs.Trace, TraceEvent{Step: "executor", Success: &success, Rows: &rows})
		}
		if o.verbose {
			fmt.Printf("[executor] success=%t rows=%d\n", success, rows)
		}
	}

	if rs.Err != "" && rs.RepairCount < MaxRepairs {
		return StateRepairing, rs
	}
	return StateSynthesizing, rs
}

// synthesize produces the final answer plus its companion fields. A model
// failure here is fatal; the run terminates degraded.
func (o *Orchestrator) synthesize(ctx context.Context, rs RunState) (State, RunState) {
	resultsJSON, _ := json.Marshal(rs.SQLResult)
	fragmentsJSON, _ := json.Marshal(rs.Fragments)

	raw, err := o.model.Synthesize(ctx, rs.Question.Text, rs.Question.FormatHint, string(resultsJSON), string(fragmentsJSON))
	if err != nil {
		rs.Err = fmt.Sprintf("synthesis failed: %v", err)
		rs.Failure = FailureSynthesis
		rs.Trace = append(rs.Trace, TraceEvent{Step: "synthesizer", Error: rs.Err, Kind: FailureSynthesis})
		return StateDone, rs
	}

	rs.FinalAnswer = ParseAnswer(raw, rs.Format)
	rs.Explanation = Explain(rs.Route, len(rs.Fragments), len(rs.SQLResult.Rows))
	rs.Citations = ExtractCitations(rs.Fragments, rs.SQL)
	rs.Confidence = Score(rs.Route, rs.RepairCount, len(rs.SQLResult.Rows), len(rs.Fragments))
	rs.Trace = append(rs.Trace, TraceEvent{Step: "synthesizer", Answer: preview(raw)})
	return StateValidating, rs
}

// validate checks answer shape and citation presence. Failures only set
// the error while repair budget remains; with the budget spent the run
// ships its best-effort answer.
func (o *Orchestrator) validate(rs RunState) (State, RunState) {
	valid := ValidateAnswer(rs.FinalAnswer, rs.Format)
	if rs.RepairCount < MaxRepairs {
		if !valid {
			rs.Err = fmt.Sprintf("answer does not match format hint %q", rs.Question.FormatHint)
			rs.Failure = FailureValidation
		} else if rs.Route != RouteRAG && len(rs.Citations) == 0 {
			rs.Err = "answer has no citations"
			rs.Failure = FailureValidation
		}
	}
	rs.Trace = append(rs.Trace, TraceEvent{Step: "validator", Valid: &valid, Error: rs.Err, Kind: rs.Failure})

	if rs.Err == "" || rs.RepairCount >= MaxRepairs {
		return StateDone, rs
	}
	return StateRepairing, rs
}

// repair consumes one repair attempt and re-enters query generation.
func (o *Orchestrator) repair(rs RunState) (State, RunState) {
	rs.RepairCount++
	rs.Trace = append(rs.Trace, TraceEvent{Step: "repair", Attempt: rs.RepairCount, Error: rs.Err, Kind: rs.Failure})
	rs.Err = ""
	rs.Failure = FailureNone
	if o.verbose {
		fmt.Printf("[repair] attempt=%d\n", rs.RepairCount)
	}
	return StateGeneratingQuery, rs
}

// buildOutput converts terminal state into the run's output record. A run
// that never produced an answer yields a degraded record: null answer,
// zero confidence, the failure reason as explanation.
func buildOutput(rs RunState) Output {
	out := Output{
		ID:          rs.Question.ID,
		FinalAnswer: rs.FinalAnswer,
		SQL:         rs.SQL,
		Confidence:  rs.Confidence,
		Explanation: rs.Explanation,
		Citations:   rs.Citations,
		Trace:       rs.Trace,
	}
	if !rs.FinalAnswer.IsSet() {
		out.Confidence = 0.0
		out.Explanation = rs.Err
		out.Citations = []string{}
	}
	return out
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
