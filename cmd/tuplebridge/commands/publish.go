package commands

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/tuplebridge/internal/filter"
	"github.com/dyluth/tuplebridge/internal/printer"
	"github.com/dyluth/tuplebridge/pkg/ipc"
	"github.com/dyluth/tuplebridge/pkg/tuple"
)

var (
	publishJSON string
	publishWait time.Duration
)

var publishCmd = &cobra.Command{
	Use:   "publish [FIELD...]",
	Short: "Publish a tuple into the space",
	Long: `Publish one tuple through the bridge.

Fields are given as name=value (integers become int64, null is null,
anything else a string) or name:=json for structured values. Alternatively
pass the whole tuple as a JSON object with --json.

Examples:
  tuplebridge publish type=chat author=bob payload=hello
  tuplebridge publish type=metric value:=42 tags:='{"host":"a"}'
  tuplebridge publish --json '{"type":"chat","payload":"hi"}'`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishJSON, "json", "", "Tuple as a JSON object")
	publishCmd.Flags().DurationVar(&publishWait, "wait", 500*time.Millisecond, "How long to wait for the bridge to reject the tuple")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	t, err := tupleFromInput(args, publishJSON)
	if err != nil {
		return err
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

	if err := c.Publish(ctx, t); err != nil {
		if errors.Is(err, ipc.ErrNoReceiver) {
			return bridgeUnreachable(cfg, err)
		}
		return err
	}
	if err := awaitRejection(c, publishWait); err != nil {
		return printer.Error("publish rejected", err.Error(), nil)
	}

	printer.Success("Published %s\n", t)
	return nil
}

func tupleFromInput(args []string, jsonObject string) (tuple.Tuple, error) {
	if jsonObject != "" && len(args) > 0 {
		return tuple.Tuple{}, printer.Error("conflicting input", "Give fields as arguments or --json, not both.", nil)
	}
	var (
		t   tuple.Tuple
		err error
	)
	if jsonObject != "" {
		t, err = filter.ParseJSON(jsonObject)
	} else {
		t, err = filter.ParseFields(args)
	}
	if err != nil {
		return tuple.Tuple{}, printer.Error("invalid tuple", err.Error(), []string{"Use name=value, name:=json or --json '{...}'"})
	}
	return t, nil
}
