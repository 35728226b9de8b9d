package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/tuplebridge/internal/printer"
	"github.com/dyluth/tuplebridge/pkg/client"
	"github.com/dyluth/tuplebridge/pkg/ipc"
)

var unsubscribeWait time.Duration

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe SUBSCRIPTION_ID",
	Short: "Cancel a subscription by id",
	Long: `Cancel a live subscription on the bridge, for example one left behind
by a client that exited without cleaning up. Live ids are listed by the
bridge's /subscriptions endpoint.

Example:
  tuplebridge unsubscribe 42`,
	Args: cobra.ExactArgs(1),
	RunE: runUnsubscribe,
}

func init() {
	unsubscribeCmd.Flags().DurationVar(&unsubscribeWait, "wait", 500*time.Millisecond, "How long to wait for the bridge to report an unknown id")
	rootCmd.AddCommand(unsubscribeCmd)
}

func runUnsubscribe(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || id == 0 {
		return printer.Error(
			"invalid subscription id",
			fmt.Sprintf("'%s' is not a subscription id", args[0]),
			[]string{"Subscription ids are positive integers"},
		)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	c, closeAll, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	if err := c.Unsubscribe(ctx, id); err != nil {
		if errors.Is(err, ipc.ErrNoReceiver) {
			return bridgeUnreachable(cfg, err)
		}
		return err
	}

	if err := awaitRejection(c, unsubscribeWait); err != nil {
		var reqErr *client.RequestError
		if errors.As(err, &reqErr) {
			return printer.Error("unsubscribe failed", reqErr.Message, nil)
		}
		return err
	}

	printer.Success("Unsubscribed %d\n", id)
	return nil
}
