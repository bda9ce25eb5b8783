// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowmq/broker/broker"
	"github.com/flowmq/broker/config"
	"github.com/flowmq/broker/storage"
	"github.com/flowmq/broker/storage/memory"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting broker",
		"tcp_addr", cfg.Server.TCPAddr,
		"storage", cfg.Storage.Type,
		"max_qos", cfg.MQTT.MaxQoS)

	var store storage.Store
	switch cfg.Storage.Type {
	case "memory":
		store = memory.New()
	default:
		logger.Warn("storage backend not available in this build, falling back to memory",
			"requested", cfg.Storage.Type)
		store = memory.New()
	}
	defer store.Close()

	hooks := broker.NewStaticAuth(cfg.Auth)

	b := broker.New(store, brokerOptions(cfg), hooks, nil, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := b.Start(ctx); err != nil {
		logger.Error("failed to start broker", "error", err)
		os.Exit(1)
	}

	listener, err := net.Listen("tcp", cfg.Server.TCPAddr)
	if err != nil {
		logger.Error("failed to listen", "addr", cfg.Server.TCPAddr, "error", err)
		os.Exit(1)
	}
	logger.Info("listening for MQTT connections", "addr", cfg.Server.TCPAddr)

	go acceptLoop(ctx, listener, b, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	_ = listener.Close()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stopCancel()
	if err := b.Stop(stopCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
}

func acceptLoop(ctx context.Context, listener net.Listener, b *broker.Broker, logger *slog.Logger) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			logger.Warn("accept failed", "error", err)
			continue
		}
		go b.Accept(ctx, conn, conn.RemoteAddr().String())
	}
}

// brokerOptions folds the mqtt, broker and session config sections into the
// single broker.Options the core operates on.
func brokerOptions(cfg *config.Config) broker.Options {
	mqtt := cfg.MQTT
	return broker.Options{
		MaxQoS:                           mqtt.MaxQoS,
		RetainAvailable:                  mqtt.RetainAvailable,
		WildcardsAvailable:               mqtt.WildcardsAvailable,
		SubscriptionIdentifiersAvailable: mqtt.SubscriptionIdentifiersAvailable,
		SharedSubscriptionsAvailable:     mqtt.SharedSubscriptionsAvailable,
		ConnectTimeout:                   mqtt.ConnectTimeout,
		SessionSweepInterval:             mqtt.SessionSweepInterval,
		SysEnabled:                       mqtt.SysEnabled,
		SysInterval:                      mqtt.SysInterval,
		MaxMessageSize:                   cfg.Broker.MaxMessageSize,
		RetryInterval:                    cfg.Broker.RetryInterval,
		MaxRetries:                       cfg.Broker.MaxRetries,
		MaxOfflineQueueSize:              cfg.Session.MaxOfflineQueueSize,
		MaxInflightMessages:              cfg.Session.MaxInflightMessages,
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
