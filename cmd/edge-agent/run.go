package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/reglet-dev/edge-agent/application/agent"
	"github.com/reglet-dev/edge-agent/application/listener"
	"github.com/reglet-dev/edge-agent/application/publisher"
	"github.com/reglet-dev/edge-agent/application/queue"
	"github.com/reglet-dev/edge-agent/config"
	"github.com/reglet-dev/edge-agent/domain/entities"
	"github.com/reglet-dev/edge-agent/domain/ports"
	"github.com/reglet-dev/edge-agent/host"
	"github.com/reglet-dev/edge-agent/hostfuncs"
	"github.com/reglet-dev/edge-agent/infrastructure/compress"
	"github.com/reglet-dev/edge-agent/infrastructure/memorybroker"
	"github.com/reglet-dev/edge-agent/infrastructure/mqtt"
	"github.com/reglet-dev/edge-agent/infrastructure/p2p"
	"github.com/reglet-dev/edge-agent/infrastructure/prompter"
	"github.com/reglet-dev/edge-agent/infrastructure/storage"
	"github.com/reglet-dev/edge-agent/internal/ctxlog"
)

// runAgent wires the components and runs the main loop on the calling
// goroutine. The listener, publisher and CLI reader run on their own.
func runAgent(ctx context.Context, cfg config.Config, stdin io.Reader, stdout io.Writer) error {
	logger := ctxlog.FromContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outbound := queue.New[entities.OutboundPublishRequest]()
	inbound := queue.New[entities.InboundMessage]()
	commands := queue.New[string]()

	manager, err := newManager(cfg, outbound, stdout, logger)
	if err != nil {
		return err
	}
	defer func() { _ = manager.Close(context.WithoutCancel(ctx)) }()

	inst, err := manager.Start(ctx)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "bundle loaded", "bundle", inst.BundleID(), "path", cfg.Bundle.Path)

	client, err := newBroker(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	reader := prompter.NewCliPrompter(stdin, stdout)

	a, err := agent.New(agent.Config{
		Topics:          cfg.Topics(),
		Version:         cfg.Version,
		Broker:          brokerAddress(cfg),
		BundlePath:      cfg.Bundle.Path,
		CompilerOptions: cfg.CompilerOptions(),
		LoopInterval:    cfg.LoopInterval,
	}, manager,
		agent.WithCommands(commands),
		agent.WithInbound(inbound),
		agent.WithOutbox(outbound),
		agent.WithBroker(client),
		agent.WithConsole(stdout),
		agent.WithLogger(logger),
		agent.WithPrompt(reader.IsInteractive()),
	)
	if err != nil {
		return err
	}

	bundleFile := storage.NewFileStore(storage.WithPath(cfg.Bundle.Path))
	var wg sync.WaitGroup
	background := []func(context.Context) error{
		listener.New(client, inbound, cfg.Topics(), bundleFile, logger).Run,
		publisher.New(client, outbound, logger).Run,
	}
	for _, run := range background {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				logger.ErrorContext(ctx, "background task failed", "error", err)
			}
		}()
	}

	// The reader blocks on stdin and is not joined; it ends with the process.
	go func() {
		if err := reader.Run(ctx, commands); err != nil {
			logger.ErrorContext(ctx, "command reader stopped", "error", err)
		}
	}()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to start broker client: %w", err)
	}

	err = a.Run(ctx)
	cancel()
	wg.Wait()
	return err
}

func newManager(cfg config.Config, outbox ports.Outbox, console io.Writer, logger *slog.Logger) (*host.Manager, error) {
	registry, err := hostfuncs.NewRegistry(
		hostfuncs.WithBundle(hostfuncs.AllBundles()),
		hostfuncs.WithMiddleware(hostfuncs.LoggingMiddleware(logger.With("component", "hostfuncs"))),
	)
	if err != nil {
		return nil, err
	}

	opts := []host.Option{
		host.WithHostFunctions(registry),
		host.WithBundlePath(cfg.Bundle.Path),
		host.WithMemoryPages(cfg.Bundle.MemoryPages),
		host.WithOutbox(outbox),
		host.WithStorage(storage.NewFileStore(storage.WithPath(cfg.Storage.Path))),
		host.WithDeviceID(cfg.DeviceID),
		host.WithConsole(console),
		host.WithLogger(logger.With("component", "host")),
		host.WithGuestConfig(guestConfig(cfg)),
	}
	if cfg.Bundle.Gzip {
		opts = append(opts, host.WithDecompressor(compress.NewGzip(0)))
	}
	return host.NewManager(opts...)
}

func guestConfig(cfg config.Config) host.GuestConfig {
	return host.GuestConfig{
		TraceLevel:          int32(cfg.Compiler.TraceLevel),
		StorageSize:         cfg.Storage.Size,
		StorageInterval:     cfg.Storage.Interval,
		DebugEnabled:        !cfg.Compiler.DisableDebugMessage,
		TopicBufferLength:   cfg.Bundle.TopicBufferLength,
		PayloadBufferLength: cfg.Bundle.PayloadBufferLength,
	}
}

func newBroker(cfg config.Config, logger *slog.Logger) (ports.BrokerClient, error) {
	switch cfg.Broker.Transport {
	case config.TransportMQTT:
		return mqtt.New(mqtt.Config{
			URL:       cfg.Broker.URL,
			ClientID:  cfg.Broker.ClientID,
			Username:  cfg.Broker.Username,
			Password:  cfg.Broker.Password,
			KeepAlive: cfg.Broker.KeepAlive,
		}, logger), nil
	case config.TransportP2P:
		return p2p.New(p2p.Config{
			ListenAddrs: cfg.Broker.ListenAddrs,
			Bootstrap:   cfg.Broker.Bootstrap,
			Topic:       cfg.Broker.Topic,
		}, logger), nil
	case config.TransportMemory:
		return memorybroker.New().Client(cfg.Broker.ClientID), nil
	default:
		return nil, fmt.Errorf("unsupported broker transport %q", cfg.Broker.Transport)
	}
}

func brokerAddress(cfg config.Config) string {
	switch cfg.Broker.Transport {
	case config.TransportMQTT:
		return cfg.Broker.URL
	case config.TransportP2P:
		return "p2p"
	default:
		return cfg.Broker.Transport
	}
}
