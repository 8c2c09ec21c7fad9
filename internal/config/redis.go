package config

import (
	"crypto/tls"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/kirky-x/twotier/internal/cerror"
)

// BuildUniversalClient constructs a redis.UniversalClient for cfg, resolving
// standalone/sentinel/cluster topology from cfg.Mode. TLS is enabled either
// explicitly (enable_tls) or implicitly by a rediss:// scheme.
func BuildUniversalClient(cfg L2Config) (redis.UniversalClient, error) {
	addrs, err := resolveAddrs(cfg)
	if err != nil {
		return nil, err
	}

	var tlsConfig *tls.Config
	if cfg.EnableTLS || strings.HasPrefix(cfg.ConnectionString, "rediss://") {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	opts := &redis.UniversalOptions{
		Addrs:        addrs,
		Password:     cfg.Password,
		DialTimeout:  cfg.ConnectionTimeout.AsDuration(),
		ReadTimeout:  cfg.CommandTimeout.AsDuration(),
		WriteTimeout: cfg.CommandTimeout.AsDuration(),
		TLSConfig:    tlsConfig,
	}

	switch cfg.Mode {
	case L2ModeSentinel:
		opts.MasterName = cfg.Sentinel.MasterName
	case L2ModeCluster:
		// go-redis picks cluster mode automatically from len(Addrs) > 1 plus
		// MasterName being unset; nothing further to set here.
	}

	return redis.NewUniversalClient(opts), nil
}

func resolveAddrs(cfg L2Config) ([]string, error) {
	switch cfg.Mode {
	case L2ModeSentinel:
		if len(cfg.Sentinel.Nodes) > 0 {
			return cfg.Sentinel.Nodes, nil
		}
	case L2ModeCluster:
		if len(cfg.Cluster.Nodes) > 0 {
			return cfg.Cluster.Nodes, nil
		}
	}
	if cfg.ConnectionString == "" {
		return nil, configErr("l2.connection_string required")
	}
	u, err := url.Parse(cfg.ConnectionString)
	if err != nil {
		return nil, cerror.Wrap(cerror.ErrConfigInvalid, "config: invalid l2.connection_string", err)
	}
	if u.Host == "" {
		return nil, configErr("l2.connection_string missing host")
	}
	return []string{u.Host}, nil
}
