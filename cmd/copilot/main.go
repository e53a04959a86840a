// Package main provides the copilot CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/richinex/copilot/cli"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	provider string
	docsDir  string
	dbPath   string
	topK     int
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	defaults := cli.DefaultOptions()

	rootCmd := &cobra.Command{
		Use:   "copilot",
		Short: "Natural-language analytics over documents and SQL",
		Long: `An analytics copilot for the Northwind retail dataset.

Questions are routed to one of three strategies:
- rag: answered from policy and marketing documents
- sql: answered by querying the database
- hybrid: document context (campaign dates, KPI formulas) shapes the query`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().StringVar(&docsDir, "docs", defaults.DocsDir, "Directory of markdown documents to index")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaults.DBPath, "Path to the SQLite database")
	rootCmd.PersistentFlags().IntVar(&topK, "top-k", defaults.TopK, "Number of document fragments to retrieve")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show per-state progress output")

	// Add commands
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	opts := cli.DefaultOptions()
	opts.Provider = provider
	opts.DocsDir = docsDir
	opts.DBPath = dbPath
	opts.TopK = topK
	opts.Verbose = verbose
	return opts
}

func askCmd() *cobra.Command {
	var formatHint string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Ask(context.Background(), args[0], formatHint, options())
		},
	}

	cmd.Flags().StringVarP(&formatHint, "format", "f", "string", "Expected answer shape (int, float, {...}, list[...], string)")

	return cmd
}

func runCmd() *cobra.Command {
	var inputPath string
	var outputPath string
	var workers int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Answer a JSONL batch of questions",
		Long: `Answer every question in a JSONL file, one record per line:

  {"id": "q1", "question": "How many orders shipped in 1997?", "format_hint": "int"}

Output records preserve input order. Malformed lines are skipped with a
diagnostic; a question that fails produces a record with a null answer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := options()
			opts.Workers = workers
			return cli.Batch(context.Background(), inputPath, outputPath, opts)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Path to the JSONL question file")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Path for JSONL output (default stdout)")
	cmd.Flags().IntVarP(&workers, "workers", "w", cli.DefaultOptions().Workers, "Concurrent questions in flight")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the database schema summary used for query generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Schema(options())
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently answered runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.History(context.Background(), limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum runs to list")

	return cmd
}
