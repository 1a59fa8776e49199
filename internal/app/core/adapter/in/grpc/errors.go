package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-balance-ledger/internal/app/core/domain"
)

// ErrorKindTrailer trailer key，帶 domain.Kind 讓 client 還原成同一個 sentinel error
const ErrorKindTrailer = "ledger-error-kind"

func codeOf(kind domain.Kind) codes.Code {
	switch kind {
	case domain.KindOK:
		return codes.OK
	case domain.KindInvalidAmount, domain.KindInvalidType:
		return codes.InvalidArgument
	case domain.KindAccountNotFound:
		return codes.NotFound
	case domain.KindAccountExists:
		return codes.AlreadyExists
	case domain.KindInsufficientFunds:
		return codes.FailedPrecondition
	case domain.KindConflict, domain.KindContention:
		return codes.Aborted
	case domain.KindStorageUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// toStatus 將 usecase 錯誤轉成 gRPC status，並在 trailer 標上錯誤種類
func toStatus(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	kind := domain.KindOf(err)
	if kind != domain.KindUnknown {
		// 直接呼叫 handler (沒有 transport stream) 時 SetTrailer 會失敗，忽略即可
		_ = grpc.SetTrailer(ctx, metadata.Pairs(ErrorKindTrailer, string(kind)))
	}
	return status.Error(codeOf(kind), err.Error())
}

// fromStatus 將 gRPC 錯誤還原成 domain sentinel error
//
// 優先使用 trailer 中的種類，沒有時依 status code 推斷。
func fromStatus(err error, trailer metadata.MD) error {
	if err == nil {
		return nil
	}
	if kinds := trailer.Get(ErrorKindTrailer); len(kinds) > 0 {
		if sentinel := domain.ErrorOf(domain.Kind(kinds[0])); sentinel != nil {
			return sentinel
		}
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return domain.ErrAccountNotFound
	case codes.AlreadyExists:
		return domain.ErrAccountAlreadyExists
	case codes.FailedPrecondition:
		return domain.ErrInsufficientFunds
	case codes.Aborted:
		return domain.ErrContention
	case codes.Unavailable:
		return domain.ErrStorageUnavailable
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	default:
		return err
	}
}
