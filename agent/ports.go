package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/richinex/copilot/internal/jsonx"
	"github.com/richinex/copilot/llm"
	"github.com/richinex/copilot/rag"
	"github.com/richinex/copilot/sqltool"
)

// LanguageModel is the narrow surface the pipeline needs from an LLM.
// Each method corresponds to one model-backed state.
type LanguageModel interface {
	// Route classifies a question into rag, sql or hybrid. The returned
	// string is not guaranteed to be in-set; the orchestrator validates.
	Route(ctx context.Context, question string) (string, error)

	// GenerateQuery writes a single SQLite SELECT for the question given
	// the schema summary and any planning constraints.
	GenerateQuery(ctx context.Context, question, schema, constraints string) (string, error)

	// Synthesize produces the final answer text from query results and
	// document fragments, shaped per the format hint.
	Synthesize(ctx context.Context, question, formatHint, queryResults, docFragments string) (string, error)
}

// Retriever is the fragment search surface the pipeline depends on.
type Retriever interface {
	Retrieve(query string, topK int) []rag.Fragment
}

// QueryExecutor runs read-only SQL and describes the schema.
type QueryExecutor interface {
	Execute(ctx context.Context, query string) sqltool.Result
	SchemaSummary() string
}

var _ LanguageModel = (*LLMPort)(nil)

// LLMPort implements LanguageModel over an llm.Client.
type LLMPort struct {
	client *llm.Client
}

// NewLLMPort wraps a client in the pipeline's model port.
func NewLLMPort(client *llm.Client) *LLMPort {
	return &LLMPort{client: client}
}

const routeSystemPrompt = `You classify analytics questions for a retail dataset copilot.

Choose exactly one route:
- "rag": the answer lives in policy and marketing documents (definitions, campaign dates, return policies)
- "sql": the answer requires only database aggregation over orders, products and customers
- "hybrid": the question needs document context (campaign periods, formula definitions) to build the right database query

Respond with JSON: {"route": "rag" | "sql" | "hybrid"}`

// Route classifies the question. The model is asked for a JSON object so
// providers that support response formats can enforce it.
func (p *LLMPort) Route(ctx context.Context, question string) (string, error) {
	messages := []llm.ChatMessage{
		llm.SystemMessage(routeSystemPrompt),
		llm.UserMessage(fmt.Sprintf("Question: %s", question)),
	}
	content, err := p.client.ChatWithFormat(ctx, messages, llm.NewJSONObjectFormat())
	if err != nil {
		return "", fmt.Errorf("route call failed: %w", err)
	}

	var decision struct {
		Route string `json:"route"`
	}
	if err := jsonx.Unmarshal(content, &decision); err != nil {
		return "", fmt.Errorf("route response not parseable: %w", err)
	}
	return strings.ToLower(strings.TrimSpace(decision.Route)), nil
}

const queryGenSystemPrompt = `You write SQLite queries for the Northwind retail database.

Rules:
- Output exactly one SELECT statement and nothing else
- Use only tables and columns from the provided schema
- The table holding order line items is named "Order Details" (with a space, quoted)
- Use strftime('%Y', ...) and strftime('%m', ...) for date parts
- Honor any date ranges or formula definitions in the constraints verbatim`

// GenerateQuery asks the model for a single SELECT statement.
func (p *LLMPort) GenerateQuery(ctx context.Context, question, schema, constraints string) (string, error) {
	user := fmt.Sprintf("Schema:\n%s\n\nConstraints:\n%s\n\nQuestion: %s\n\nSQL:", schema, constraints, question)
	messages := []llm.ChatMessage{
		llm.SystemMessage(queryGenSystemPrompt),
		llm.UserMessage(user),
	}
	content, err := p.client.Chat(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("query generation call failed: %w", err)
	}
	return strings.TrimSpace(content), nil
}

const synthesisSystemPrompt = `You answer analytics questions using SQL query results and document excerpts.

Rules:
- Answer with exactly the shape the format hint asks for: a bare integer for "int", a bare number for "float", a JSON object for dict-shaped hints, a JSON array for list-shaped hints
- Do not wrap the answer in prose or code fences
- Base numeric answers on the query results, not on estimates`

// Synthesize produces the final answer text. Query results and fragments
// arrive pre-serialized as JSON so the prompt stays provider-neutral.
func (p *LLMPort) Synthesize(ctx context.Context, question, formatHint, queryResults, docFragments string) (string, error) {
	user := fmt.Sprintf(
		"Question: %s\nFormat hint: %s\n\nQuery results:\n%s\n\nDocument excerpts:\n%s\n\nAnswer:",
		question, formatHint, queryResults, docFragments,
	)
	messages := []llm.ChatMessage{
		llm.SystemMessage(synthesisSystemPrompt),
		llm.UserMessage(user),
	}
	content, err := p.client.Chat(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("synthesis call failed: %w", err)
	}
	return strings.TrimSpace(content), nil
}
