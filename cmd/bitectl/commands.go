package main

import (
	"context"
	"fmt"

	"bite/api/grpcserver"
	"bite/domain/ledger"

	"github.com/spf13/cobra"
)

// -------------------- Offline --------------------

func commitmentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commitment <price> <nonce>",
		Short: "Compute keccak256(price, nonce) for a sealed offer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := parseUint(args[0], "price")
			if err != nil {
				return err
			}
			nonce, err := parseUint(args[1], "nonce")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ledger.Commitment(ledger.Amount(price), nonce))
			return nil
		},
	}
}

// -------------------- Commands --------------------

func registerCmd() *cobra.Command {
	var req grpcserver.RegisterServiceRequest
	var price uint64
	cmd := &cobra.Command{
		Use:   "register <name>",
		Short: "Register a service owned by --account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			req.PricePerUnit = ledger.Amount(price)
			return withClient(cmd, func(ctx context.Context, c *grpcserver.Client) (any, error) {
				return c.RegisterService(ctx, &req)
			})
		},
	}
	cmd.Flags().StringVar(&req.Description, "description", "", "service description")
	cmd.Flags().Uint64Var(&price, "price", 0, "price per unit")
	cmd.Flags().Uint64Var(&req.Uptime, "uptime", 0, "advertised uptime")
	cmd.Flags().Uint64Var(&req.Rating, "rating", 0, "initial rating (0-50)")
	return cmd
}

func requestCmd() *cobra.Command {
	var objective string
	cmd := &cobra.Command{
		Use:   "request <service-id> <budget>",
		Short: "Open a request, escrowing budget from --account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := parseUint(args[0], "service id")
			if err != nil {
				return err
			}
			budget, err := parseUint(args[1], "budget")
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *grpcserver.Client) (any, error) {
				return c.CreateRequest(ctx, &grpcserver.CreateRequestRequest{
					ServiceID: ledger.ServiceID(sid),
					Objective: objective,
					Value:     ledger.Amount(budget),
				})
			})
		},
	}
	cmd.Flags().StringVar(&objective, "objective", "", "what the requester wants done")
	return cmd
}

func commitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit <request-id> <commitment-hex>",
		Short: "Submit a sealed offer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rid, err := parseUint(args[0], "request id")
			if err != nil {
				return err
			}
			h, err := ledger.ParseHash(args[1])
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *grpcserver.Client) (any, error) {
				return c.SubmitOffer(ctx, &grpcserver.SubmitOfferRequest{RequestID: ledger.RequestID(rid), Commitment: h})
			})
		},
	}
}

func revealCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reveal <request-id> <price> <nonce>",
		Short: "Reveal a sealed offer",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rid, err := parseUint(args[0], "request id")
			if err != nil {
				return err
			}
			price, err := parseUint(args[1], "price")
			if err != nil {
				return err
			}
			nonce, err := parseUint(args[2], "nonce")
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *grpcserver.Client) (any, error) {
				return c.RevealOffer(ctx, &grpcserver.RevealOfferRequest{
					RequestID: ledger.RequestID(rid),
					Price:     ledger.Amount(price),
					Nonce:     nonce,
				})
			})
		},
	}
}

func settleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settle <request-id> <provider>",
		Short: "Pay a revealed offer and refund the rest of the budget",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rid, err := parseUint(args[0], "request id")
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *grpcserver.Client) (any, error) {
				return c.SettlePayment(ctx, &grpcserver.SettlePaymentRequest{RequestID: ledger.RequestID(rid), Provider: args[1]})
			})
		},
	}
}

func rateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate <service-id> <rating>",
		Short: "Rate a service (0-50)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := parseUint(args[0], "service id")
			if err != nil {
				return err
			}
			rating, err := parseUint(args[1], "rating")
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *grpcserver.Client) (any, error) {
				return c.RateService(ctx, &grpcserver.RateServiceRequest{ServiceID: ledger.ServiceID(sid), Rating: rating})
			})
		},
	}
}

func depositCmd() *cobra.Command {
	return transferCmd("deposit", "Credit funds to --account", (*grpcserver.Client).Deposit)
}

func withdrawCmd() *cobra.Command {
	return transferCmd("withdraw", "Debit funds from --account", (*grpcserver.Client).Withdraw)
}

func transferCmd(use, short string, call func(*grpcserver.Client, context.Context, *grpcserver.TransferRequest) (*grpcserver.Receipt, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <amount>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseUint(args[0], "amount")
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *grpcserver.Client) (any, error) {
				return call(c, ctx, &grpcserver.TransferRequest{Amount: ledger.Amount(amount)})
			})
		},
	}
}

// -------------------- Queries --------------------

func servicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "services [id]",
		Short: "List services, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return withClient(cmd, func(ctx context.Context, c *grpcserver.Client) (any, error) {
					return c.ListServices(ctx, &grpcserver.ListServicesRequest{})
				})
			}
			id, err := parseUint(args[0], "service id")
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *grpcserver.Client) (any, error) {
				return c.GetService(ctx, &grpcserver.GetServiceRequest{ServiceID: ledger.ServiceID(id)})
			})
		},
	}
}

func requestsCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "requests [id]",
		Short: "List requests, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return withClient(cmd, func(ctx context.Context, c *grpcserver.Client) (any, error) {
					return c.ListRequests(ctx, &grpcserver.ListRequestsRequest{Status: status})
				})
			}
			id, err := parseUint(args[0], "request id")
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *grpcserver.Client) (any, error) {
				return c.GetRequest(ctx, &grpcserver.GetRequestRequest{RequestID: ledger.RequestID(id)})
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (open, settled, ...)")
	return cmd
}

func biddersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bidders <request-id>",
		Short: "List providers that committed on a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint(args[0], "request id")
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *grpcserver.Client) (any, error) {
				return c.ListBidders(ctx, &grpcserver.ListBiddersRequest{RequestID: ledger.RequestID(id)})
			})
		},
	}
}

func offerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "offer <request-id> <provider>",
		Short: "Show one provider's offer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint(args[0], "request id")
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *grpcserver.Client) (any, error) {
				return c.GetOffer(ctx, &grpcserver.GetOfferRequest{RequestID: ledger.RequestID(id), Provider: args[1]})
			})
		},
	}
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Show an account balance (defaults to --account)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := account
			if len(args) == 1 {
				addr = args[0]
			}
			return withClient(cmd, func(ctx context.Context, c *grpcserver.Client) (any, error) {
				return c.GetBalance(ctx, &grpcserver.GetBalanceRequest{Account: addr})
			})
		},
	}
}
