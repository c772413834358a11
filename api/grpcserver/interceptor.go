package grpcserver

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// LoggingInterceptor logs every call with its code and latency.
func LoggingInterceptor(log *logrus.Logger) grpc.UnaryServerInterceptor {
	entry := log.WithField("component", "grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fields := logrus.Fields{
			"method":   info.FullMethod,
			"code":     status.Code(err).String(),
			"duration": time.Since(start),
		}
		if err != nil {
			entry.WithFields(fields).WithError(err).Info("call failed")
		} else {
			entry.WithFields(fields).Debug("call")
		}
		return resp, err
	}
}

// NewGRPCServer builds a grpc.Server serving the marketplace.
func NewGRPCServer(srv MarketplaceServer, log *logrus.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(LoggingInterceptor(log)))
	s := grpc.NewServer(opts...)
	RegisterMarketplaceServer(s, srv)
	return s
}
