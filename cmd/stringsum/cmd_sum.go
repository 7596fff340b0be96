package main

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/conduitio/conduit/pkg/foundation/cerrors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runSum(cmd *cobra.Command, args []string) error {
	a, err := parseOperand(args[0])
	if err != nil {
		return err
	}
	b, err := parseOperand(args[1])
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

	logger.Debug("Computing sum", zap.Uint64("a", a), zap.Uint64("b", b))
	sum, err := adder.SumAsString(ctx, a, b)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), sum)
	return nil
}

// parseOperand accepts non-negative decimal integers that fit into 64 bits.
func parseOperand(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, cerrors.Errorf("invalid operand %q: expected a non-negative integer up to %d", s, uint64(math.MaxUint64))
	}
	return v, nil
}
