package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/conduitio/conduit/pkg/foundation/cerrors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Nokodoko/string-sum/stringsum"
)

type pair struct {
	line int
	a, b uint64
}

func runBatch(cmd *cobra.Command, args []string) error {
	pairs, err := readPairs(cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	adder, closeAdder, err := openAdder(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeAdder(ctx)

	logger.Debug("Running batch",
		zap.Int("pairs", len(pairs)),
		zap.Int("concurrency", cfg.Batch.Concurrency))

	results, err := sumPairs(ctx, adder, pairs, cfg.Batch.Concurrency)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(cmd.OutOrStdout())
	for _, r := range results {
		fmt.Fprintln(w, r)
	}
	return w.Flush()
}

// readPairs parses one pair per non-blank line.
func readPairs(r io.Reader) ([]pair, error) {
	var pairs []pair
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, cerrors.Errorf("line %d: expected two operands, got %d", line, len(fields))
		}
		a, err := parseOperand(fields[0])
		if err != nil {
			return nil, cerrors.Errorf("line %d: %w", line, err)
		}
		b, err := parseOperand(fields[1])
		if err != nil {
			return nil, cerrors.Errorf("line %d: %w", line, err)
		}
		pairs = append(pairs, pair{line: line, a: a, b: b})
	}
	if err := scanner.Err(); err != nil {
		return nil, cerrors.Errorf("failed to read input: %w", err)
	}
	return pairs, nil
}

// sumPairs evaluates pairs with at most limit calls in flight. Results keep
// the order of pairs; overflowing pairs yield "overflow".
func sumPairs(ctx context.Context, adder stringsum.Adder, pairs []pair, limit int) ([]string, error) {
	results := make([]string, len(pairs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range pairs {
		g.Go(func() error {
			sum, err := adder.SumAsString(ctx, p.a, p.b)
			switch {
			case cerrors.Is(err, stringsum.ErrOverflow):
				logger.Debug("Sum overflows", zap.Int("line", p.line))
				results[i] = "overflow"
			case err != nil:
				return cerrors.Errorf("line %d: %w", p.line, err)
			default:
				results[i] = sum
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
