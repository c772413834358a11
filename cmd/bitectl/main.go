package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"bite/api/grpcserver"
	"bite/domain/ledger"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

var (
	serverAddr string
	account    string
	timeout    time.Duration
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bitectl",
		Short:         "Client for the bite marketplace ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&serverAddr, "server", "s", "localhost:50051", "gRPC address")
	root.PersistentFlags().StringVarP(&account, "account", "a", os.Getenv("BITE_ACCOUNT"), "account to act as (0x...)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "per-call timeout")

	root.AddCommand(
		commitmentCmd(),
		registerCmd(),
		requestCmd(),
		commitCmd(),
		revealCmd(),
		settleCmd(),
		rateCmd(),
		depositCmd(),
		withdrawCmd(),
		servicesCmd(),
		requestsCmd(),
		biddersCmd(),
		offerCmd(),
		balanceCmd(),
	)
	return root
}

// withClient dials the server and runs fn with a deadline.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *grpcserver.Client) (any, error)) error {
	c, conn, err := grpcserver.Dial(serverAddr, ledger.Address(account), dialOptions...)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	out, err := fn(ctx, c)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseUint(s, what string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, what)
	}
	return v, nil
}

// dialOptions exists for tests that need a custom dialer.
var dialOptions []grpc.DialOption
