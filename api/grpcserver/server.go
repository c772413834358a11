package grpcserver

import (
	"context"

	"bite/domain/ledger"
	"bite/service"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// CallerHeader carries the account a command acts for.
const CallerHeader = "x-account"

// Server adapts MarketService to gRPC.
type Server struct {
	svc *service.MarketService
}

func NewServer(svc *service.MarketService) *Server {
	return &Server{svc: svc}
}

var _ MarketplaceServer = (*Server)(nil)

// -------------------- Commands --------------------

func (s *Server) RegisterService(ctx context.Context, req *RegisterServiceRequest) (*Receipt, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	r, err := s.svc.RegisterService(ctx, caller, ledger.ServiceSpec{
		Name:         req.Name,
		Description:  req.Description,
		PricePerUnit: req.PricePerUnit,
		Uptime:       req.Uptime,
		Rating:       req.Rating,
	})
	return toReceipt(r, err)
}

func (s *Server) CreateRequest(ctx context.Context, req *CreateRequestRequest) (*Receipt, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	return toReceipt(s.svc.CreateRequest(ctx, caller, req.ServiceID, req.Objective, req.Value))
}

func (s *Server) SubmitOffer(ctx context.Context, req *SubmitOfferRequest) (*Receipt, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	return toReceipt(s.svc.SubmitOffer(ctx, caller, req.RequestID, req.Commitment))
}

func (s *Server) RevealOffer(ctx context.Context, req *RevealOfferRequest) (*Receipt, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	return toReceipt(s.svc.RevealOffer(ctx, caller, req.RequestID, req.Price, req.Nonce))
}

func (s *Server) SettlePayment(ctx context.Context, req *SettlePaymentRequest) (*Receipt, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	return toReceipt(s.svc.SettlePayment(ctx, caller, req.RequestID, ledger.Address(req.Provider)))
}

func (s *Server) RateService(ctx context.Context, req *RateServiceRequest) (*Receipt, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	return toReceipt(s.svc.RateService(ctx, caller, req.ServiceID, req.Rating))
}

func (s *Server) Deposit(ctx context.Context, req *TransferRequest) (*Receipt, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	return toReceipt(s.svc.Deposit(ctx, caller, req.Amount))
}

func (s *Server) Withdraw(ctx context.Context, req *TransferRequest) (*Receipt, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	return toReceipt(s.svc.Withdraw(ctx, caller, req.Amount))
}

// -------------------- Queries --------------------

func (s *Server) GetService(_ context.Context, req *GetServiceRequest) (*ServiceResponse, error) {
	svc, err := s.svc.Service(req.ServiceID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ServiceResponse{Service: svc}, nil
}

func (s *Server) ListServices(context.Context, *ListServicesRequest) (*ListServicesResponse, error) {
	return &ListServicesResponse{Services: s.svc.Services()}, nil
}

func (s *Server) GetRequest(_ context.Context, req *GetRequestRequest) (*RequestResponse, error) {
	r, err := s.svc.Request(req.RequestID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &RequestResponse{Request: r}, nil
}

func (s *Server) ListRequests(_ context.Context, req *ListRequestsRequest) (*ListRequestsResponse, error) {
	var filter *ledger.Status
	if req.Status != "" {
		st, err := ledger.ParseStatus(req.Status)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		filter = &st
	}
	return &ListRequestsResponse{Requests: s.svc.Requests(filter)}, nil
}

func (s *Server) ListBidders(_ context.Context, req *ListBiddersRequest) (*ListBiddersResponse, error) {
	bidders, err := s.svc.Bidders(req.RequestID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListBiddersResponse{Bidders: bidders}, nil
}

func (s *Server) GetOffer(_ context.Context, req *GetOfferRequest) (*OfferResponse, error) {
	provider, err := ledger.ParseAddress(req.Provider)
	if err != nil {
		return nil, toStatus(err)
	}
	o, err := s.svc.Offer(req.RequestID, provider)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OfferResponse{Offer: o}, nil
}

func (s *Server) GetBalance(_ context.Context, req *GetBalanceRequest) (*BalanceResponse, error) {
	a, err := ledger.ParseAddress(req.Account)
	if err != nil {
		return nil, toStatus(err)
	}
	return &BalanceResponse{
		Account: a,
		Balance: s.svc.Balance(a),
		Escrow:  s.svc.Escrowed(),
	}, nil
}

// -------------------- Converters --------------------

func callerFrom(ctx context.Context) (ledger.Address, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	vals := md.Get(CallerHeader)
	if len(vals) == 0 || vals[0] == "" {
		return "", status.Error(codes.Unauthenticated, "missing "+CallerHeader+" header")
	}
	a, err := ledger.ParseAddress(vals[0])
	if err != nil {
		return "", status.Error(codes.Unauthenticated, err.Error())
	}
	return a, nil
}

func toReceipt(r service.Receipt, err error) (*Receipt, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	events := r.Events
	if events == nil {
		events = []ledger.Event{}
	}
	return &Receipt{
		Seq:       r.Seq,
		ServiceID: r.ServiceID,
		RequestID: r.RequestID,
		Events:    events,
	}, nil
}
