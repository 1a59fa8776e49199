package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	grpc_adapter "github.com/JoeShih716/go-balance-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-balance-ledger/internal/app/core/domain"
	grpcpool "github.com/JoeShih716/go-balance-ledger/pkg/grpc"
)

// 壓測工具：對同一個帳戶並發存款，最後比對餘額是否等於成功筆數 * 金額
func main() {
	addr := flag.String("addr", "localhost:50051", "ledger grpc address")
	accountID := flag.Int64("account", 1, "account id")
	total := flag.Int("n", 10000, "number of deposits")
	concurrency := flag.Int("c", 100, "concurrent requests")
	amount := flag.String("amount", "1.00", "deposit amount")
	flag.Parse()

	perDeposit, err := domain.ParseAmount(*amount)
	if err != nil {
		log.Fatalf("invalid amount %q: %v", *amount, err)
	}

	pool := grpcpool.NewPool(grpcpool.WithCallContentSubtype(grpc_adapter.CodecName))
	defer pool.Close()
	conn, err := pool.GetConnection(*addr)
	if err != nil {
		log.Fatalf("did not connect: %v", err)
	}
	c := grpc_adapter.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	_, err = c.OpenAccount(ctx, &grpc_adapter.OpenAccountRequest{AccountID: *accountID})
	if err != nil && !errors.Is(err, domain.ErrAccountAlreadyExists) {
		log.Fatalf("open account: %v", err)
	}
	before, err := c.GetBalance(ctx, &grpc_adapter.GetBalanceRequest{AccountID: *accountID})
	if err != nil {
		log.Fatalf("get balance: %v", err)
	}

	var ok, contended, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)

	startTime := time.Now()
	for i := 0; i < *total; i++ {
		idx := i
		g.Go(func() error {
			_, err := c.ApplyTransaction(gctx, &grpc_adapter.ApplyTransactionRequest{
				AccountID:   *accountID,
				Amount:      *amount,
				Type:        domain.TransactionTypeDeposit.String(),
				Description: fmt.Sprintf("load-%d", idx),
			})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrContention):
				contended.Add(1)
			default:
				if failed.Add(1) <= 10 {
					log.Printf("deposit %d failed: %v", idx, err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(startTime)

	after, err := c.GetBalance(ctx, &grpc_adapter.GetBalanceRequest{AccountID: *accountID})
	if err != nil {
		log.Fatalf("get balance: %v", err)
	}

	fmt.Printf("Completed %d requests in %v\n", *total, elapsed)
	fmt.Printf("TPS: %.2f\n", float64(*total)/elapsed.Seconds())
	fmt.Printf("ok=%d contention=%d failed=%d\n", ok.Load(), contended.Load(), failed.Load())

	start := decimal.RequireFromString(before.Balance)
	expected := start.Add(perDeposit.Mul(decimal.NewFromInt(ok.Load())))
	fmt.Printf("balance %s -> %s (expected %s)\n", before.Balance, after.Balance, domain.FormatAmount(expected))
	if !expected.Equal(decimal.RequireFromString(after.Balance)) {
		log.Fatalf("balance mismatch: lost or duplicated postings")
	}
}
