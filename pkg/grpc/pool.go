package grpc

import (
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// Pool 依目標地址共用 gRPC 連線，同一個地址只維護一個 ClientConn。
// 可並發使用。
type Pool struct {
	mu          sync.Mutex
	conns       map[string]*grpc.ClientConn
	interceptor grpc.UnaryClientInterceptor
	dialOpts    []grpc.DialOption
}

type PoolOption func(*Pool)

// WithInterceptor 設定所有連線共用的 UnaryClientInterceptor (logging, metrics, auth)
func WithInterceptor(interceptor grpc.UnaryClientInterceptor) PoolOption {
	return func(p *Pool) {
		p.interceptor = interceptor
	}
}

// WithCallContentSubtype 所有呼叫預設使用指定的 codec，例如 "json"
func WithCallContentSubtype(subtype string) PoolOption {
	return func(p *Pool) {
		p.dialOpts = append(p.dialOpts, grpc.WithDefaultCallOptions(grpc.CallContentSubtype(subtype)))
	}
}

func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{conns: make(map[string]*grpc.ClientConn)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetConnection 取得 target 的連線，不存在或已 Shutdown 時建立新的
//
// 參數:
//
//	target: string - 目標伺服器地址 (e.g., "localhost:50051")
//	opts: ...grpc.DialOption - 額外的連線選項，只在建立新連線時生效
//
// 回傳值:
//
//	*grpc.ClientConn: gRPC 客戶端連線
//	error: 建立連線失敗
func (p *Pool) GetConnection(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.conns[target]; ok {
		if conn.GetState() != connectivity.Shutdown {
			return conn, nil
		}
		delete(p.conns, target)
	}

	dialOpts := []grpc.DialOption{
		// 內部服務通訊，不走 TLS
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             time.Second,
			PermitWithoutStream: true,
		}),
	}
	if p.interceptor != nil {
		dialOpts = append(dialOpts, grpc.WithUnaryInterceptor(p.interceptor))
	}
	dialOpts = append(dialOpts, p.dialOpts...)
	dialOpts = append(dialOpts, opts...)

	// grpc.NewClient 不會立即連線，第一次呼叫時才建立 (lazy)
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for target %s: %w", target, err)
	}
	p.conns[target] = conn
	return conn, nil
}

// Close 關閉所有連線，回傳第一個錯誤
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for target, conn := range p.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, target)
	}
	return firstErr
}
