package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "bite.marketplace.v1.Marketplace"

// MarketplaceServer is the server API of the marketplace service.
type MarketplaceServer interface {
	RegisterService(context.Context, *RegisterServiceRequest) (*Receipt, error)
	CreateRequest(context.Context, *CreateRequestRequest) (*Receipt, error)
	SubmitOffer(context.Context, *SubmitOfferRequest) (*Receipt, error)
	RevealOffer(context.Context, *RevealOfferRequest) (*Receipt, error)
	SettlePayment(context.Context, *SettlePaymentRequest) (*Receipt, error)
	RateService(context.Context, *RateServiceRequest) (*Receipt, error)
	Deposit(context.Context, *TransferRequest) (*Receipt, error)
	Withdraw(context.Context, *TransferRequest) (*Receipt, error)

	GetService(context.Context, *GetServiceRequest) (*ServiceResponse, error)
	ListServices(context.Context, *ListServicesRequest) (*ListServicesResponse, error)
	GetRequest(context.Context, *GetRequestRequest) (*RequestResponse, error)
	ListRequests(context.Context, *ListRequestsRequest) (*ListRequestsResponse, error)
	ListBidders(context.Context, *ListBiddersRequest) (*ListBiddersResponse, error)
	GetOffer(context.Context, *GetOfferRequest) (*OfferResponse, error)
	GetBalance(context.Context, *GetBalanceRequest) (*BalanceResponse, error)
}

func RegisterMarketplaceServer(s grpc.ServiceRegistrar, srv MarketplaceServer) {
	s.RegisterService(&marketplaceServiceDesc, srv)
}

var marketplaceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MarketplaceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("RegisterService", MarketplaceServer.RegisterService),
		unary("CreateRequest", MarketplaceServer.CreateRequest),
		unary("SubmitOffer", MarketplaceServer.SubmitOffer),
		unary("RevealOffer", MarketplaceServer.RevealOffer),
		unary("SettlePayment", MarketplaceServer.SettlePayment),
		unary("RateService", MarketplaceServer.RateService),
		unary("Deposit", MarketplaceServer.Deposit),
		unary("Withdraw", MarketplaceServer.Withdraw),
		unary("GetService", MarketplaceServer.GetService),
		unary("ListServices", MarketplaceServer.ListServices),
		unary("GetRequest", MarketplaceServer.GetRequest),
		unary("ListRequests", MarketplaceServer.ListRequests),
		unary("ListBidders", MarketplaceServer.ListBidders),
		unary("GetOffer", MarketplaceServer.GetOffer),
		unary("GetBalance", MarketplaceServer.GetBalance),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bite/marketplace.v1",
}

// unary builds the handler protoc would otherwise generate for one method.
func unary[Req, Resp any](
	name string,
	call func(MarketplaceServer, context.Context, *Req) (*Resp, error),
) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MarketplaceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(MarketplaceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
