package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
	"sync/atomic"
	"time"

	"sim-exchange/analytics"
	"sim-exchange/domain"
	"sim-exchange/matching"

	"github.com/shopspring/decimal"
)

func main() {
	var (
		duration   = flag.Duration("duration", 5*time.Second, "how long producers submit orders")
		workers    = flag.Int("workers", 0, "producer goroutines (default NumCPU - 2)")
		queueSize  = flag.Int("queue", 65536, "exchange command queue size")
		cpuProfile = flag.String("cpuprofile", "", "write a CPU profile to this file")
	)
	flag.Parse()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "create profile:", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintln(os.Stderr, "start profile:", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
		fmt.Printf("Writing CPU profile to %s\n", *cpuProfile)
	}

	fmt.Println("=== Matching engine throughput ===")

	engine := matching.NewEngine(matching.WithArenaCapacity(1 << 16))
	exchange := matching.NewExchange(engine, *queueSize)
	exchange.Start()
	defer exchange.Stop()

	numCPU := runtime.NumCPU()
	numWorkers := *workers
	if numWorkers <= 0 {
		numWorkers = numCPU - 2 // one for the matching thread, one for the system/GC
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var (
		orderCount atomic.Int64
		tradeCount atomic.Int64
	)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	// trade consumer
	go func() {
		sub := exchange.Feed().Subscribe(0)
		for {
			if _, err := sub.Next(context.Background()); err != nil {
				return
			}
			tradeCount.Add(1)
		}
	}()

	fmt.Printf("CPU cores:  %d\n", numCPU)
	fmt.Printf("Producers:  %d\n", numWorkers)
	fmt.Printf("Duration:   %v\n\n", *duration)

	startTime := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			owner := fmt.Sprintf("user-%d", workerID)
			size := decimal.NewFromInt(1)
			for i := 0; ; i++ {
				// alternate sides over overlapping prices so orders cross
				side := domain.SideBid
				if i%2 == 1 {
					side = domain.SideAsk
				}
				_, err := exchange.Submit(ctx, matching.OrderRequest{
					Owner: owner,
					Type:  domain.OrderTypeLimit,
					Side:  side,
					Price: decimal.NewFromInt(50000 + int64(i%200)),
					Size:  size,
				})
				if err != nil {
					return
				}
				orderCount.Add(1)
			}
		}(w)
	}

	// progress
	ticker := time.NewTicker(time.Second)
	go func() {
		for range ticker.C {
			elapsed := time.Since(startTime)
			orders := orderCount.Load()
			trades := tradeCount.Load()
			fmt.Printf("[%.0fs] orders: %d (%.0f/s) | trades: %d (%.0f/s)\n",
				elapsed.Seconds(), orders, float64(orders)/elapsed.Seconds(), trades, float64(trades)/elapsed.Seconds())
		}
	}()

	wg.Wait()
	ticker.Stop()

	elapsed := time.Since(startTime)
	stats, err := exchange.Stats(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "stats:", err)
		return
	}
	totalOrders := orderCount.Load()
	totalTrades := int64(stats.Trades)

	qps := float64(totalOrders) / elapsed.Seconds()
	tps := float64(totalTrades) / elapsed.Seconds()

	fmt.Println("\n=== Results ===")
	fmt.Printf("Elapsed:        %v\n", elapsed)
	fmt.Printf("Orders:         %d\n", totalOrders)
	fmt.Printf("Trades:         %d\n", totalTrades)
	fmt.Printf("Order rate:     %.0f orders/sec\n", qps)
	fmt.Printf("Trade rate:     %.0f trades/sec\n", tps)
	if totalOrders > 0 {
		fmt.Printf("Avg latency:    %.2f μs/order\n", elapsed.Seconds()*1e6/float64(totalOrders))
		fmt.Printf("Match rate:     %.2f%%\n", float64(totalTrades)/float64(totalOrders)*100)
	}

	fmt.Println("\n=== Rating ===")
	switch {
	case qps >= 1000000:
		fmt.Println("extreme (>1M orders/sec)")
	case qps >= 500000:
		fmt.Println("excellent (500K-1M orders/sec)")
	case qps >= 100000:
		fmt.Println("good (100K-500K orders/sec)")
	case qps >= 10000:
		fmt.Println("acceptable (10K-100K orders/sec)")
	default:
		fmt.Println("low (<10K orders/sec)")
	}

	depth, err := exchange.Depth(context.Background(), 5)
	if err != nil {
		return
	}
	fmt.Println("\n=== Book ===")
	fmt.Printf("Resting orders: %d (bid levels %d, ask levels %d)\n", stats.Resting, stats.BidLevels, stats.AskLevels)
	fmt.Printf("Imbalance:      %.3f\n", analytics.NewAnalyzer(5).Imbalance(depth))

	fmt.Println("\nBids (top 5):")
	for i, level := range depth.Bids {
		fmt.Printf("  %d. price: %s, volume: %s, orders: %d\n", i+1, level.Price, level.Volume, level.Orders)
	}
	fmt.Println("\nAsks (top 5):")
	for i, level := range depth.Asks {
		fmt.Printf("  %d. price: %s, volume: %s, orders: %d\n", i+1, level.Price, level.Volume, level.Orders)
	}
}
