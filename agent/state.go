// Package agent implements the question-answering pipeline: an explicit
// state machine that sequences routing, retrieval, constraint planning,
// query generation, execution, answer synthesis and validation, with a
// bounded repair loop around query generation and execution.
package agent

import (
	"encoding/json"
	"strings"

	"github.com/richinex/copilot/rag"
	"github.com/richinex/copilot/sqltool"
)

// Route is the coarse strategy chosen for a question.
type Route string

const (
	RouteRAG    Route = "rag"
	RouteSQL    Route = "sql"
	RouteHybrid Route = "hybrid"
)

// ValidRoute reports whether the routing call returned an in-set value.
func ValidRoute(r Route) bool {
	return r == RouteRAG || r == RouteSQL || r == RouteHybrid
}

// FailureKind classifies where a run failed. Routing and synthesis
// failures are fatal; the query kinds and validation are repairable.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureRouting    FailureKind = "routing"
	FailureGeneration FailureKind = "query_generation"
	FailureExecution  FailureKind = "query_execution"
	FailureSynthesis  FailureKind = "synthesis"
	FailureValidation FailureKind = "validation"
)

// Format is the expected shape of the final answer, parsed from the
// question's format hint. Parsing and validation both switch on this tag.
type Format int

const (
	FormatString Format = iota
	FormatInt
	FormatFloat
	FormatDict
	FormatList
)

// ParseFormat maps a free-text format hint onto the closed format set.
// List-shaped hints win over dict-shaped ones so that hints like
// "list[dict]" parse as sequences.
func ParseFormat(hint string) Format {
	h := strings.ToLower(strings.TrimSpace(hint))
	switch {
	case strings.Contains(h, "list") || strings.HasPrefix(h, "["):
		return FormatList
	case strings.Contains(h, "{") || strings.Contains(h, "dict"):
		return FormatDict
	case h == "int":
		return FormatInt
	case h == "float":
		return FormatFloat
	default:
		return FormatString
	}
}

// Answer is the typed final answer: a tagged variant over the format set.
// The zero value is "no answer" and marshals to JSON null.
type Answer struct {
	set    bool
	format Format
	intVal int64
	fltVal float64
	objVal map[string]interface{}
	lstVal []interface{}
	strVal string
}

// IntAnswer creates an integer answer.
func IntAnswer(v int64) Answer { return Answer{set: true, format: FormatInt, intVal: v} }

// FloatAnswer creates a float answer.
func FloatAnswer(v float64) Answer { return Answer{set: true, format: FormatFloat, fltVal: v} }

// DictAnswer creates a mapping answer.
func DictAnswer(v map[string]interface{}) Answer {
	return Answer{set: true, format: FormatDict, objVal: v}
}

// ListAnswer creates a sequence answer.
func ListAnswer(v []interface{}) Answer {
	return Answer{set: true, format: FormatList, lstVal: v}
}

// StringAnswer creates a plain text answer.
func StringAnswer(v string) Answer { return Answer{set: true, format: FormatString, strVal: v} }

// IsSet reports whether an answer has been produced.
func (a Answer) IsSet() bool { return a.set }

// Format returns the variant tag.
func (a Answer) Format() Format { return a.format }

// Int returns the integer value (zero unless the tag is FormatInt).
func (a Answer) Int() int64 { return a.intVal }

// Float returns the float value (zero unless the tag is FormatFloat).
func (a Answer) Float() float64 { return a.fltVal }

// Dict returns the mapping value (nil unless the tag is FormatDict).
func (a Answer) Dict() map[string]interface{} { return a.objVal }

// List returns the sequence value (nil unless the tag is FormatList).
func (a Answer) List() []interface{} { return a.lstVal }

// Text returns the string value (empty unless the tag is FormatString).
func (a Answer) Text() string { return a.strVal }

// Value returns the untyped underlying value, or nil when unset.
func (a Answer) Value() interface{} {
	if !a.set {
		return nil
	}
	switch a.format {
	case FormatInt:
		return a.intVal
	case FormatFloat:
		return a.fltVal
	case FormatDict:
		return a.objVal
	case FormatList:
		return a.lstVal
	default:
		return a.strVal
	}
}

// MarshalJSON emits the underlying value, or null when unset.
func (a Answer) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Value())
}

// TraceEvent is one append-only record in the run's audit log. Every state
// transition appends exactly one; records are never mutated retroactively.
type TraceEvent struct {
	Step        string      `json:"step"`
	Route       string      `json:"route,omitempty"`
	FragmentIDs []string    `json:"chunks,omitempty"`
	Constraints string      `json:"constraints,omitempty"`
	Method      string      `json:"method,omitempty"`
	SQL         string      `json:"sql,omitempty"`
	Success     *bool       `json:"success,omitempty"`
	Rows        *int        `json:"rows,omitempty"`
	Answer      string      `json:"answer,omitempty"`
	Valid       *bool       `json:"valid,omitempty"`
	Attempt     int         `json:"attempt,omitempty"`
	Error       string      `json:"error,omitempty"`
	Kind        FailureKind `json:"failure_kind,omitempty"`
}

// Question is one immutable input to the pipeline.
type Question struct {
	ID         string `json:"id"`
	Text       string `json:"question"`
	FormatHint string `json:"format_hint"`
}

// RunState is the single mutable record threaded through the state machine.
// Created fresh per question; never shared across questions.
type RunState struct {
	Question    Question
	Format      Format
	Route       Route
	Fragments   []rag.Fragment
	Constraints string
	SQL         string
	SQLResult   sqltool.Result
	FinalAnswer Answer
	Confidence  float64
	Explanation string
	Citations   []string
	Err         string
	Failure     FailureKind
	RepairCount int
	Trace       []TraceEvent
}

// NewRunState creates the initial state for a question. Collection fields
// start empty-but-valid so they serialize to empty structures, never null.
func NewRunState(q Question) RunState {
	return RunState{
		Question:  q,
		Format:    ParseFormat(q.FormatHint),
		Fragments: []rag.Fragment{},
		SQLResult: sqltool.Result{Columns: []string{}, Rows: [][]interface{}{}},
		Citations: []string{},
		Trace:     []TraceEvent{},
	}
}

// Output is the run's terminal record, one per input question.
type Output struct {
	ID          string   `json:"id"`
	FinalAnswer Answer   `json:"final_answer"`
	SQL         string   `json:"sql"`
	Confidence  float64  `json:"confidence"`
	Explanation string   `json:"explanation"`
	Citations   []string `json:"citations"`

	// Trace is the audit log; persisted by the run store but excluded
	// from batch output records.
	Trace []TraceEvent `json:"-"`
}
