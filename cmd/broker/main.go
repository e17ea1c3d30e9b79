// Command broker runs the XSUB/XPUB forwarder that bookmarksync instances
// publish to and subscribe from.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	zmqbus "bookmarksync/internal/bus/zmq"
	"bookmarksync/internal/config"
)

func main() {
	xsub := flag.String("xsub", "tcp://*:5557", "endpoint instances publish to")
	xpub := flag.String("xpub", "tcp://*:5558", "endpoint instances subscribe from")
	level := flag.String("log-level", "info", "log level")
	format := flag.String("log-format", "json", "log format: json or console")
	flag.Parse()

	logger, err := config.LogConfig{Level: *level, Format: *format}.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "broker: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	broker, err := zmqbus.NewBroker(*xsub, *xpub, logger)
	if err != nil {
		logger.Fatal("failed to start broker", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down broker")
		if err := broker.Close(); err != nil {
			logger.Warn("broker close", zap.Error(err))
		}
	}()

	logger.Info("broker listening", zap.String("xsub", *xsub), zap.String("xpub", *xpub))
	if err := broker.Run(); err != nil {
		logger.Error("broker stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("broker stopped")
}
