package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/richinex/copilot/agent"
)

// Runner answers one question. Satisfied by agent.Orchestrator.
type Runner interface {
	Run(ctx context.Context, q agent.Question) agent.Output
}

// Batch answers every question in a JSONL input file and writes one output
// record per question, in input order. An empty output path writes to
// stdout.
func Batch(ctx context.Context, inputPath, outputPath string, opts Options) error {
	orch, cleanup, err := buildOrchestrator(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	in, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	questions := ReadQuestions(in, func(line int, err error) {
		fmt.Fprintf(os.Stderr, "Warning: skipping line %d: %v\n", line, err)
	})
	if opts.Verbose {
		fmt.Printf("Answering %d question(s) with %d worker(s)...\n", len(questions), opts.Workers)
	}

	outputs := RunBatch(ctx, orch, questions, opts.Workers)

	var out io.Writer = os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	return WriteOutputs(out, outputs)
}

// ReadQuestions parses JSONL input into questions, preserving line order.
// Blank lines are ignored; malformed lines are reported through warn and
// skipped without aborting the batch.
func ReadQuestions(r io.Reader, warn func(line int, err error)) []agent.Question {
	questions := []agent.Question{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var q agent.Question
		if err := json.Unmarshal([]byte(line), &q); err != nil {
			if warn != nil {
				warn(lineNo, err)
			}
			continue
		}
		if q.Text == "" {
			if warn != nil {
				warn(lineNo, fmt.Errorf("missing question field"))
			}
			continue
		}
		questions = append(questions, q)
	}

	if err := scanner.Err(); err != nil && warn != nil {
		warn(lineNo, err)
	}
	return questions
}

// RunBatch answers questions concurrently with at most workers in flight.
// Results land at their question's index, so output order always matches
// input order regardless of completion order.
func RunBatch(ctx context.Context, runner Runner, questions []agent.Question, workers int) []agent.Output {
	if workers < 1 {
		workers = 1
	}

	outputs := make([]agent.Output, len(questions))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, q := range questions {
		i, q := i, q
		g.Go(func() error {
			outputs[i] = runner.Run(ctx, q)
			return nil
		})
	}

	// Workers never return errors; failures become degraded records.
	_ = g.Wait()
	return outputs
}

// WriteOutputs writes one JSON record per line.
func WriteOutputs(w io.Writer, outputs []agent.Output) error {
	enc := json.NewEncoder(w)
	for _, out := range outputs {
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("failed to encode output %q: %w", out.ID, err)
		}
	}
	return nil
}
