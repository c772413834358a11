package grpcserver

import (
	"context"

	"bite/domain/ledger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// Client is a typed marketplace client. Commands are sent on behalf of
// the account it was created for.
type Client struct {
	conn    grpc.ClientConnInterface
	account ledger.Address
}

// Dial connects to addr without TLS.
func Dial(addr string, account ledger.Address, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient(addr, append(opts, DialOptions()...)...)
	if err != nil {
		return nil, nil, err
	}
	return NewClient(conn, account), conn, nil
}

// DialOptions selects the JSON codec for every call on a connection.
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}
}

func NewClient(conn grpc.ClientConnInterface, account ledger.Address) *Client {
	return &Client{conn: conn, account: account}
}

// As returns a client sharing the connection but acting for account.
func (c *Client) As(account ledger.Address) *Client {
	return &Client{conn: c.conn, account: account}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	if c.account != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, CallerHeader, string(c.account))
	}
	return c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, grpc.CallContentSubtype(codecName))
}

func (c *Client) RegisterService(ctx context.Context, in *RegisterServiceRequest) (*Receipt, error) {
	out := new(Receipt)
	if err := c.invoke(ctx, "RegisterService", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateRequest(ctx context.Context, in *CreateRequestRequest) (*Receipt, error) {
	out := new(Receipt)
	if err := c.invoke(ctx, "CreateRequest", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SubmitOffer(ctx context.Context, in *SubmitOfferRequest) (*Receipt, error) {
	out := new(Receipt)
	if err := c.invoke(ctx, "SubmitOffer", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RevealOffer(ctx context.Context, in *RevealOfferRequest) (*Receipt, error) {
	out := new(Receipt)
	if err := c.invoke(ctx, "RevealOffer", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SettlePayment(ctx context.Context, in *SettlePaymentRequest) (*Receipt, error) {
	out := new(Receipt)
	if err := c.invoke(ctx, "SettlePayment", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RateService(ctx context.Context, in *RateServiceRequest) (*Receipt, error) {
	out := new(Receipt)
	if err := c.invoke(ctx, "RateService", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Deposit(ctx context.Context, in *TransferRequest) (*Receipt, error) {
	out := new(Receipt)
	if err := c.invoke(ctx, "Deposit", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Withdraw(ctx context.Context, in *TransferRequest) (*Receipt, error) {
	out := new(Receipt)
	if err := c.invoke(ctx, "Withdraw", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetService(ctx context.Context, in *GetServiceRequest) (*ServiceResponse, error) {
	out := new(ServiceResponse)
	if err := c.invoke(ctx, "GetService", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListServices(ctx context.Context, in *ListServicesRequest) (*ListServicesResponse, error) {
	out := new(ListServicesResponse)
	if err := c.invoke(ctx, "ListServices", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetRequest(ctx context.Context, in *GetRequestRequest) (*RequestResponse, error) {
	out := new(RequestResponse)
	if err := c.invoke(ctx, "GetRequest", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListRequests(ctx context.Context, in *ListRequestsRequest) (*ListRequestsResponse, error) {
	out := new(ListRequestsResponse)
	if err := c.invoke(ctx, "ListRequests", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListBidders(ctx context.Context, in *ListBiddersRequest) (*ListBiddersResponse, error) {
	out := new(ListBiddersResponse)
	if err := c.invoke(ctx, "ListBidders", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetOffer(ctx context.Context, in *GetOfferRequest) (*OfferResponse, error) {
	out := new(OfferResponse)
	if err := c.invoke(ctx, "GetOffer", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetBalance(ctx context.Context, in *GetBalanceRequest) (*BalanceResponse, error) {
	out := new(BalanceResponse)
	if err := c.invoke(ctx, "GetBalance", in, out); err != nil {
		return nil, err
	}
	return out, nil
}
