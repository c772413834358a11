package grpcserver

import (
	"context"

	"bite/domain/ledger"
	"bite/service"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps ledger error kinds onto gRPC codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	if errors.Is(err, service.ErrUnavailable) {
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codeFor(ledger.KindOf(err)), err.Error())
}

func codeFor(k ledger.Kind) codes.Code {
	switch k {
	case ledger.KindInvalidInput, ledger.KindProofFailure:
		return codes.InvalidArgument
	case ledger.KindNotFound:
		return codes.NotFound
	case ledger.KindStateViolation, ledger.KindEconomic:
		return codes.FailedPrecondition
	case ledger.KindUnauthorized:
		return codes.PermissionDenied
	case ledger.KindTransferFailure:
		return codes.Aborted
	default:
		return codes.Internal
	}
}
