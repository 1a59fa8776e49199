package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "ledger.v1.LedgerService"

const (
	methodOpenAccount      = "/" + ServiceName + "/OpenAccount"
	methodApplyTransaction = "/" + ServiceName + "/ApplyTransaction"
	methodGetBalance       = "/" + ServiceName + "/GetBalance"
	methodListRecent       = "/" + ServiceName + "/ListRecent"
)

// LedgerServiceServer gRPC 服務介面
type LedgerServiceServer interface {
	OpenAccount(context.Context, *OpenAccountRequest) (*OpenAccountResponse, error)
	ApplyTransaction(context.Context, *ApplyTransactionRequest) (*ApplyTransactionResponse, error)
	GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error)
	ListRecent(context.Context, *ListRecentRequest) (*ListRecentResponse, error)
}

// unaryHandler 產生 grpc.MethodHandler：解碼請求、套用 interceptor、呼叫實作
func unaryHandler[Req, Resp any](fullMethod string, call func(LedgerServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "OpenAccount",
			Handler:    unaryHandler(methodOpenAccount, LedgerServiceServer.OpenAccount),
		},
		{
			MethodName: "ApplyTransaction",
			Handler:    unaryHandler(methodApplyTransaction, LedgerServiceServer.ApplyTransaction),
		},
		{
			MethodName: "GetBalance",
			Handler:    unaryHandler(methodGetBalance, LedgerServiceServer.GetBalance),
		},
		{
			MethodName: "ListRecent",
			Handler:    unaryHandler(methodListRecent, LedgerServiceServer.ListRecent),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger.json",
}

// RegisterLedgerServiceServer 把實作註冊到 grpc.Server
func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}
