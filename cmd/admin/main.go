package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"pairup/backend/internal/storage"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "online":
		if err := online(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "online: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: admin <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  online [--redis-url URL] [--ids]   print the number of online participants")
}

func online(args []string) error {
	flagSet := pflag.NewFlagSet("online", pflag.ContinueOnError)
	redisURL := flagSet.String("redis-url", os.Getenv("REDIS_URL"), "presence sidecar address")
	showIDs := flagSet.Bool("ids", false, "also list the online connection ids")
	timeout := flagSet.Duration("timeout", 5*time.Second, "overall deadline")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *redisURL == "" {
		return errors.New("--redis-url or REDIS_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rdb, err := storage.NewRedisClient(ctx, *redisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	// The TTL only matters for writes.
	presence := storage.NewRedisPresence(rdb, 0)
	count, err := presence.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("online: %d\n", count)

	if *showIDs {
		ids, err := presence.Online(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
	}
	return nil
}
