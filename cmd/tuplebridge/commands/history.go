package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/tuplebridge/internal/filter"
	"github.com/dyluth/tuplebridge/internal/history"
	"github.com/dyluth/tuplebridge/internal/logging"
	"github.com/dyluth/tuplebridge/internal/printer"
	"github.com/dyluth/tuplebridge/internal/resolver"
	"github.com/dyluth/tuplebridge/internal/timespec"
	"github.com/dyluth/tuplebridge/pkg/space"
)

var (
	historyOutputFormat string
	historySince        string
	historyUntil        string
	historyType         string
	historyWhere        []string
)

var historyCmd = &cobra.Command{
	Use:   "history [TUPLE_ID]",
	Short: "Inspect stored tuples with filtering",
	Long: `Inspect the tuples stored in the space in list or get mode. Reads
Redis directly; no bridge needs to be running.

List Mode (no TUPLE_ID):
  Displays tuples matching filters as a table or JSONL stream, in
  publication order.

Get Mode (with TUPLE_ID):
  Displays one stored tuple as pretty-printed JSON.
  Supports short IDs (e.g., "550e84" instead of the full UUID).

Filters (list mode only):
  --where  - Field that must be present and equal (name=value, repeatable)
  --type   - Glob pattern on the "type" field ("chat.*")
  --since  - Published after this time (duration or RFC3339)
  --until  - Published before this time (duration or RFC3339)

Examples:
  tuplebridge history --type='chat*' --since=1h
  tuplebridge history --where author=bob --output=jsonl | jq .tuple
  tuplebridge history 550e8400`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historyOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")
	historyCmd.Flags().StringVar(&historySince, "since", "", "Show tuples after time (duration or RFC3339)")
	historyCmd.Flags().StringVar(&historyUntil, "until", "", "Show tuples before time (duration or RFC3339)")
	historyCmd.Flags().StringVar(&historyType, "type", "", "Filter by type field (glob pattern)")
	historyCmd.Flags().StringArrayVar(&historyWhere, "where", nil, "Filter by field (name=value or name:=json)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	isGetMode := len(args) > 0

	var outputFormat history.OutputFormat
	switch historyOutputFormat {
	case "default":
		outputFormat = history.OutputFormatDefault
	case "jsonl":
		outputFormat = history.OutputFormatJSONL
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", historyOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := cfg.RedisOptions()
	if err != nil {
		return err
	}

	logger := logging.New("tuplebridge", cfg.LogLevel, os.Stderr)
	sp, err := space.Open(opts, cfg.Instance, space.WithLogger(logging.Component(logger, "space")))
	if err != nil {
		return fmt.Errorf("failed to open space: %w", err)
	}
	defer sp.Close()

	if err := sp.Ping(ctx); err != nil {
		return redisUnreachable(cfg, err)
	}

	if isGetMode {
		fullID, err := resolver.ResolveTupleID(ctx, sp, args[0])
		if err != nil {
			var amb *resolver.AmbiguousError
			switch {
			case resolver.IsNotFoundError(err):
				return printer.Error(
					fmt.Sprintf("tuple with ID '%s' not found", args[0]),
					"No stored tuple id starts with this prefix.",
					[]string{"List stored tuples:\n  tuplebridge history"},
				)
			case errors.As(err, &amb):
				return printer.Error(
					err.Error(),
					amb.Describe(),
					[]string{"Use a longer prefix to uniquely identify the tuple."},
				)
			}
			return printer.Error("invalid tuple ID", err.Error(), nil)
		}

		if err := history.Get(ctx, sp, fullID, cmd.OutOrStdout()); err != nil {
			if history.IsNotFound(err) {
				return printer.Error(
					err.Error(),
					"The specified tuple does not exist in the space.",
					[]string{
						"List stored tuples:\n  tuplebridge history",
						fmt.Sprintf("Verify instance:\n  tuplebridge history --name %s", cfg.Instance),
					},
				)
			}
			return printer.Error("failed to get tuple", err.Error(), nil)
		}
		return nil
	}

	window, err := timespec.ParseWindow(historySince, historyUntil, time.Now())
	if err != nil {
		return printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{"Use duration format like '1h30m' or RFC3339 like '2025-10-29T13:00:00Z'"},
		)
	}
	fields, err := filter.ParseFields(historyWhere)
	if err != nil {
		return printer.Error("invalid --where filter", err.Error(), nil)
	}

	criteria := &filter.Criteria{Fields: fields, TypeGlob: historyType, Window: window}
	if err := history.List(ctx, sp, cfg.Instance, outputFormat, criteria, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("failed to list tuples: %w", err)
	}
	return nil
}
