package main

import (
	"fmt"
	"os"

	twotier "github.com/kirky-x/twotier"
	"github.com/kirky-x/twotier/internal/config"
	"github.com/kirky-x/twotier/internal/l2"
	"github.com/kirky-x/twotier/internal/logging"
	"github.com/kirky-x/twotier/internal/metrics"
	"github.com/kirky-x/twotier/internal/serialize"
	"github.com/kirky-x/twotier/internal/wal"
)

// buildCache loads configPath, resolves the named service, and constructs a
// ready-to-Start *twotier.Cache plus its logger, for every subcommand to
// share.
func buildCache() (*twotier.Cache, logging.Logger, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := config.Load(data)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	svc, ok := cfg.Services[serviceName]
	if !ok {
		return nil, nil, fmt.Errorf("unknown service %q", serviceName)
	}

	logger := logging.New(os.Stderr, serviceName)

	client, err := config.BuildUniversalClient(svc.L2)
	if err != nil {
		return nil, nil, fmt.Errorf("build redis client: %w", err)
	}
	backend := l2.NewRedis(client)

	var w *wal.WAL
	if svc.CacheType == config.CacheTypeTwoLevel {
		m := metrics.Nop{}
		w, err = wal.Open(fmt.Sprintf("twotier-%s.wal", serviceName), serviceName, logger, m)
		if err != nil {
			return nil, nil, fmt.Errorf("open wal: %w", err)
		}
	}

	serializerKind, err := serialize.ParseKind(cfg.Global.Serialization.String())
	if err != nil {
		return nil, nil, fmt.Errorf("parse serializer: %w", err)
	}
	serializer, err := serialize.New(serializerKind, false)
	if err != nil {
		return nil, nil, fmt.Errorf("build serializer: %w", err)
	}

	if existing, ok := twotier.Get(serviceName); ok {
		return existing, logger, nil
	}

	cache, err := twotier.Init(serviceName, svc, twotier.Options{
		L2:         backend,
		WAL:        w,
		Serializer: serializer,
		Logger:     logger,
		Metrics:    metrics.Nop{},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build cache: %w", err)
	}
	return cache, logger, nil
}
