// Package testutil holds helpers shared by tests across packages.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dyluth/tuplebridge/pkg/ipc"
)

// probeID is a subscription id no bridge will ever assign.
const probeID = 1 << 62

// WaitForListener blocks until something is listening on target of
// transport. It probes with an Unsubscribe carrying no reply target, which a
// bridge rejects without replying.
func WaitForListener(t *testing.T, transport ipc.Transport, target string) {
	t.Helper()
	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return transport.Send(ctx, target, ipc.Message{Op: ipc.OpUnsubscribe, SubscriptionID: probeID}) == nil
	}, 5*time.Second, 10*time.Millisecond, "nothing listening on %s", target)
}
