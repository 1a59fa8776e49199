package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnaryLoggingInterceptor 記錄每個請求的方法、狀態碼與耗時，並把 panic 轉成 Internal
func UnaryLoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc handler panic", zap.String("method", info.FullMethod), zap.Any("panic", r), zap.Stack("stack"))
				err = status.Error(codes.Internal, "internal error")
			}

			code := status.Code(err)
			level := zapcore.DebugLevel
			switch code {
			case codes.OK, codes.InvalidArgument, codes.NotFound, codes.AlreadyExists, codes.FailedPrecondition, codes.Canceled:
			case codes.Aborted:
				level = zapcore.WarnLevel
			default:
				level = zapcore.ErrorLevel
			}
			if ce := log.Check(level, "grpc request"); ce != nil {
				ce.Write(
					zap.String("method", info.FullMethod),
					zap.String("code", code.String()),
					zap.Duration("duration", time.Since(start)),
					zap.Error(err),
				)
			}
		}()
		return handler(ctx, req)
	}
}
