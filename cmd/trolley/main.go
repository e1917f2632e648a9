package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"trolley/internal/cart"
	"trolley/internal/cart/metrics"
	"trolley/internal/cart/store"
	"trolley/internal/inventory"
	"trolley/internal/platform/config"
	"trolley/internal/platform/logger"
	platformredis "trolley/internal/platform/redis"
	"trolley/internal/storefront"
)

// trolley is a one-shot headless cart client: it connects the engine to a
// storefront, performs one cart operation, and prints the resulting cart.
//
//	trolley show
//	trolley add <productID> <quantity> <price> <name> [imageURL]
//	trolley update <productID> <quantity>
//	trolley remove <productID> <quantity>
//	trolley clear
//
// TROLLEY_SESSION_TOKEN selects the authenticated session; unset means guest.
func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg := config.FromEnv()
	log := logger.New()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var storage store.GuestStorage
	if cfg.RedisURL != "" {
		client, err := platformredis.New(ctx, cfg.RedisURL)
		if err != nil {
			fatal("connect redis: %v", err)
		}
		defer client.Close()
		storage = store.NewRedisStorage(client)
	} else {
		storage = store.NewFileStorage(cfg.GuestCartPath)
	}

	feed := inventory.New(cfg.FeedURL, inventory.WithLogger(log))
	if err := feed.Connect(ctx); err != nil {
		fatal("connect inventory feed: %v", err)
	}
	defer feed.Close()

	client := storefront.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout)
	engine := cart.NewEngine(feed, client, storage,
		cart.WithLogger(log),
		cart.WithMetrics(metrics.New()),
	)
	engine.SetSession(ctx, os.Getenv("TROLLEY_SESSION_TOKEN"))

	if err := run(ctx, engine, feed, os.Args[1], os.Args[2:]); err != nil {
		fatal("%v", err)
	}

	for _, line := range engine.Lines() {
		fmt.Printf("%-20s x%-3d %8s  %s\n", line.ProductID, line.Quantity, line.UnitPrice, line.Name)
	}
}

func run(ctx context.Context, engine *cart.Engine, feed *inventory.Feed, command string, args []string) error {
	switch command {
	case "show":
		return nil
	case "add":
		if len(args) < 4 {
			usage()
		}
		quantity := mustInt(args[1])
		imageURL := ""
		if len(args) > 4 {
			imageURL = args[4]
		}
		waitForProduct(ctx, feed, args[0])
		return engine.AddItem(ctx, args[0], quantity, args[2], args[3], imageURL)
	case "update":
		if len(args) < 2 {
			usage()
		}
		waitForProduct(ctx, feed, args[0])
		return engine.UpdateQuantity(ctx, args[0], mustInt(args[1]))
	case "remove":
		if len(args) < 2 {
			usage()
		}
		return engine.RemoveItem(ctx, args[0], mustInt(args[1]))
	case "clear":
		return engine.ClearGuestCart(ctx)
	default:
		usage()
		return nil
	}
}

// waitForProduct gives the feed a moment to deliver the initial inventory
// frame so stock validation has something to check against.
func waitForProduct(ctx context.Context, feed *inventory.Feed, productID string) {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && ctx.Err() == nil {
		if _, ok := feed.Lookup(productID); ok {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func mustInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		fatal("not a number: %s", s)
	}
	return n
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: trolley show | add <productID> <quantity> <price> <name> [imageURL] | update <productID> <quantity> | remove <productID> <quantity> | clear")
	os.Exit(2)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
