package main

import (
	"context"
	"fmt"
	"os"

	"aqi-explorer/internal/config"
	"aqi-explorer/internal/db"
	"aqi-explorer/internal/logging"
	"aqi-explorer/internal/migrate"
)

var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <command>\n  up  apply pending lookup history migrations\n", os.Args[0])
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg, Version, "aqi-migrate")

	switch os.Args[1] {
	case "up", "migrate":
		conn, err := db.Open(cfg, logger)
		if err != nil {
			logger.Error("db open", "err", err)
			os.Exit(1)
		}
		defer func() {
			if err := db.Close(conn); err != nil {
				logger.Error("db close", "err", err)
			}
		}()

		n, err := migrate.Run(context.Background(), conn, logger)
		if err != nil {
			logger.Error("migrate", "err", err)
			_ = db.Close(conn)
			os.Exit(1)
		}
		logger.Info("migrations complete", "applied", n)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(2)
	}
}
