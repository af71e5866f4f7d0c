package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"miner-agent/cmd"
	conf "miner-agent/internal/config"
)

// VERSION is the current version of the miner-agent.
const VERSION = "0.1"

func main() {
	// Graceful shutdown on interrupt: both loops stop scheduling new
	// work once the context is cancelled.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// load config
	configPath := "config/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	config, err := conf.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("[CONFIG] Failed to load config: %v", err)
	}

	// main runner
	agent, err := cmd.NewAgent(config)
	if err != nil {
		log.Fatalln(err)
	}
	if err := agent.Run(ctx); err != nil {
		log.Fatalf("[AGENT] %v", err)
	}
}
