package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go-substrate-client/internal/clients"
	"go-substrate-client/internal/config"
	"go-substrate-client/internal/messages"
)

func main() {
	var (
		configFilePath       string
		watcherConfiguration config.Config
		msg                  *messages.Message
	)

	flag.StringVar(&configFilePath, "configfile", "", "path to config file")
	flag.StringVar(&configFilePath, "c", "", "path to config file")
	flag.Parse()
	if configFilePath == "" {
		messages.NewMessage(messages.LOG_LEVEL_INFO, "", nil, messages.CONFIG_NO_CUSTOM_PATH_SPECIFIED).ConsoleLog()
		watcherConfiguration, msg = config.LoadConfig(nil)
	} else {
		watcherConfiguration, msg = config.LoadConfig(&configFilePath)
	}
	if msg != nil {
		msg.ConsoleLog()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orchestrator, err := clients.NewOrchestrator(ctx, watcherConfiguration)
	if err != nil {
		messages.NewMessage(messages.LOG_LEVEL_ERROR, "main", err, "Failed to start the watcher").ConsoleLog()
		os.Exit(1)
	}
	defer orchestrator.Close()

	if err := orchestrator.Run(ctx); err != nil {
		messages.NewMessage(messages.LOG_LEVEL_ERROR, "main", err, "Watcher stopped").ConsoleLog()
		orchestrator.Close()
		os.Exit(1)
	}
}
