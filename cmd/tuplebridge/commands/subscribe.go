package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyluth/tuplebridge/internal/printer"
	"github.com/dyluth/tuplebridge/pkg/client"
	"github.com/dyluth/tuplebridge/pkg/ipc"
	"github.com/dyluth/tuplebridge/pkg/tuple"
)

var (
	subscribeJSON   string
	subscribeLocal  bool
	subscribeCount  int
	subscribeOutput string
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe [FIELD...]",
	Short: "Stream the tuples matching criteria",
	Long: `Subscribe to every tuple carrying all the given fields.

Matching tuples already in the space are printed first, in publication
order, then new ones as they arrive. With no fields every tuple matches.
Press Ctrl-C to unsubscribe and exit.

Output Formats:
  default - One line per tuple: [subscription-id] name=value ...
  json    - Line-delimited JSON for programmatic processing

Examples:
  tuplebridge subscribe type=chat
  tuplebridge subscribe --local type=chat
  tuplebridge subscribe --count 1 --output json type=job`,
	RunE: runSubscribe,
}

func init() {
	subscribeCmd.Flags().StringVar(&subscribeJSON, "json", "", "Criteria as a JSON object")
	subscribeCmd.Flags().BoolVar(&subscribeLocal, "local", false, "Only tuples published through this bridge")
	subscribeCmd.Flags().IntVar(&subscribeCount, "count", 0, "Exit after this many tuples (0 = unlimited)")
	subscribeCmd.Flags().StringVarP(&subscribeOutput, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(subscribeCmd)
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	if subscribeOutput != "default" && subscribeOutput != "json" {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", subscribeOutput),
			[]string{"Valid formats: default, json"},
		)
	}

	criteria, err := tupleFromInput(args, subscribeJSON)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, closeAll, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	subscribe := c.Subscribe
	if subscribeLocal {
		subscribe = c.SubscribeLocal
	}
	sub, err := subscribe(ctx, criteria)
	if err != nil {
		var reqErr *client.RequestError
		switch {
		case errors.Is(err, ipc.ErrNoReceiver):
			return bridgeUnreachable(cfg, err)
		case errors.As(err, &reqErr):
			return printer.Error("subscription rejected", reqErr.Message, nil)
		case errors.Is(err, context.Canceled):
			return nil
		}
		return err
	}
	defer sub.Close()

	return stream(ctx, sub, subscribeCount, subscribeOutput, cmd.OutOrStdout())
}

type streamedTuple struct {
	Subscription uint64 `json:"subscription"`
	Tuple        any    `json:"tuple"`
}

// stream prints values until ctx ends, the subscription completes or limit
// values were printed.
func stream(ctx context.Context, sub *client.Subscription, limit int, format string, w io.Writer) error {
	enc := json.NewEncoder(w)
	errs := sub.Errors()
	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil

		case t, ok := <-sub.Values():
			if !ok {
				if sub.Completed() {
					printer.Info("Subscription %d completed\n", sub.ID)
				}
				return nil
			}
			if format == "json" {
				if err := enc.Encode(streamedTuple{Subscription: sub.ID, Tuple: jsonTuple(t)}); err != nil {
					return err
				}
			} else {
				printer.Tuple(sub.ID, t)
			}
			seen++
			if limit > 0 && seen >= limit {
				return nil
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			printer.Warning("subscription %d: %v\n", sub.ID, err)
		}
	}
}

func jsonTuple(t tuple.Tuple) any {
	if m, err := t.ToMap(); err == nil {
		if _, err := json.Marshal(m); err == nil {
			return m
		}
	}
	return t.String()
}
