// Command execution for CLI commands: pipeline wiring, single-question
// runs and output formatting.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/richinex/copilot/agent"
	"github.com/richinex/copilot/config"
	"github.com/richinex/copilot/llm"
	"github.com/richinex/copilot/rag"
	"github.com/richinex/copilot/sqltool"
	"github.com/richinex/copilot/storage"
)

// Options holds CLI execution options.
type Options struct {
	Provider string
	DocsDir  string
	DBPath   string
	TopK     int
	Workers  int
	Verbose  bool
}

// DefaultOptions returns CLI options backed by environment defaults.
func DefaultOptions() Options {
	settings := config.MustNew("")
	return Options{
		DocsDir: settings.Paths.DocsDir,
		DBPath:  settings.Paths.DBPath,
		TopK:    settings.Pipeline.TopK,
		Workers: settings.Pipeline.Workers,
	}
}

// runStoreDBPath is where answered runs are persisted.
const runStoreDBPath = ".copilot/runs.db"

// Ask answers a single question and prints the output record.
func Ask(ctx context.Context, question, formatHint string, opts Options) error {
	orch, cleanup, err := buildOrchestrator(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	q := agent.Question{ID: "adhoc", Text: question, FormatHint: formatHint}
	out := orch.Run(ctx, q)

	persistRun(ctx, q, out)
	return printOutput(out)
}

// Schema prints the database schema summary used for query generation.
func Schema(opts Options) error {
	executor, err := sqltool.Open(opts.DBPath)
	if err != nil {
		return err
	}
	defer executor.Close()

	fmt.Println(executor.SchemaSummary())
	return nil
}

// History prints the most recent persisted runs.
func History(ctx context.Context, limit int) error {
	store, err := storage.OpenSqlite(runStoreDBPath)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	defer store.Close()

	records, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	for _, record := range records {
		answer, _ := json.Marshal(record.Output.FinalAnswer)
		fmt.Printf("%s  [%s]  %s\n", record.CreatedAt, record.RunID, record.Question)
		fmt.Printf("  answer=%s confidence=%.2f\n", answer, record.Output.Confidence)
	}
	return nil
}

// buildOrchestrator wires the pipeline's ports from options. The returned
// cleanup closes the database handle.
func buildOrchestrator(opts Options) (*agent.Orchestrator, func(), error) {
	provider, err := createProvider(opts.Provider)
	if err != nil {
		return nil, nil, err
	}

	retriever, err := rag.NewRetriever(opts.DocsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load documents: %w", err)
	}

	executor, err := sqltool.Open(opts.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	orch := agent.NewOrchestrator(agent.NewLLMPort(llm.NewClient(provider)), retriever, executor).
		WithTopK(opts.TopK).
		WithVerbose(opts.Verbose)

	return orch, func() { _ = executor.Close() }, nil
}

// persistRun saves the run best-effort; persistence failures only warn.
func persistRun(ctx context.Context, q agent.Question, out agent.Output) {
	store, err := storage.OpenSqlite(runStoreDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: run not persisted: %v\n", err)
		return
	}
	defer store.Close()

	if _, err := store.SaveRun(ctx, q, out); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save run: %v\n", err)
	}
}

// printOutput writes the output record as indented JSON.
func printOutput(out agent.Output) error {
	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}

func createProvider(providerName string) (llm.Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("--provider is required for this command")
	}

	providerType, err := llm.ParseProviderType(providerName)
	if err != nil {
		return nil, err
	}

	settings, err := config.New(providerName)
	if err != nil {
		return nil, err
	}

	apiKey, err := config.APIKeyFor(providerName)
	if err != nil {
		return nil, err
	}

	return providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		APIKey(apiKey)
}
