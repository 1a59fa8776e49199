package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Client LedgerService 的 JSON gRPC 客戶端
//
// 伺服端錯誤會還原成 domain 的 sentinel error，可直接用 errors.Is 判斷。
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	var trailer metadata.MD
	opts = append(opts, grpc.CallContentSubtype(CodecName), grpc.Trailer(&trailer))
	if err := c.conn.Invoke(ctx, method, req, resp, opts...); err != nil {
		return fromStatus(err, trailer)
	}
	return nil
}

func (c *Client) OpenAccount(ctx context.Context, req *OpenAccountRequest, opts ...grpc.CallOption) (*OpenAccountResponse, error) {
	resp := new(OpenAccountResponse)
	if err := c.invoke(ctx, methodOpenAccount, req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) ApplyTransaction(ctx context.Context, req *ApplyTransactionRequest, opts ...grpc.CallOption) (*ApplyTransactionResponse, error) {
	resp := new(ApplyTransactionResponse)
	if err := c.invoke(ctx, methodApplyTransaction, req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetBalance(ctx context.Context, req *GetBalanceRequest, opts ...grpc.CallOption) (*GetBalanceResponse, error) {
	resp := new(GetBalanceResponse)
	if err := c.invoke(ctx, methodGetBalance, req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) ListRecent(ctx context.Context, req *ListRecentRequest, opts ...grpc.CallOption) (*ListRecentResponse, error) {
	resp := new(ListRecentResponse)
	if err := c.invoke(ctx, methodListRecent, req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}
