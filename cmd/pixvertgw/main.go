// Command pixvertgw runs the image-transformation gateway: it loads
// app.yml, wires the Cache Engine / Fetcher / Decoder / Resizer /
// Encoder stages, and serves the HTTP surface from spec.md §6.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pixvert/pixvert/pkg/cacheengine"
	"github.com/pixvert/pixvert/pkg/config"
	"github.com/pixvert/pixvert/pkg/fetcher"
	"github.com/pixvert/pixvert/pkg/gateway"
	"github.com/pixvert/pixvert/pkg/imagecodec"
	"github.com/pixvert/pixvert/pkg/logging"
)

func main() {
	configPath := flag.String("config", "app.yml", "path to app.yml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, config.ErrDefaultWritten) {
			fmt.Printf("wrote default configuration to %s, edit it and restart\n", *configPath)
			return
		}
		log.Fatalf("pixvertgw: loading config: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level: cfg.Log.Level,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	if err != nil {
		log.Fatalf("pixvertgw: building logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	fetcherCache, decoderCache, resizerCache, encoderCache, health, err := buildCacheEngines(cfg.Cache)
	if err != nil {
		logger.Fatal("pixvertgw: building cache engines", zap.Error(err))
	}

	var overrides []fetcher.OverrideRule
	for _, rule := range cfg.OverriddenCache {
		overrides = append(overrides, fetcher.OverrideRule{Domain: rule.Domain, CacheControl: rule.CacheControl})
	}

	fet := fetcher.New(fetcher.Config{
		AllowFrom:       cfg.AllowFrom,
		OverriddenCache: overrides,
		Timeout:         30 * time.Second,
	}, fetcherCache, logger)

	gw := gateway.NewGateway(
		fet,
		imagecodec.NewDecoder(decoderCache, logger),
		imagecodec.NewResizer(resizerCache, logger, cfg.MaximumImageSize),
		imagecodec.NewEncoder(encoderCache, logger),
		logger,
		health,
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gw,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("pixvertgw: listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("pixvertgw: server exited", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("pixvertgw: graceful shutdown failed", zap.Error(err))
	}
}

// buildCacheEngines builds the four stage-local cache namespaces.
// Under the file variant each stage gets its own subdirectory, mirroring
// original_source's per-stage FileCache instances; under inMemory each
// stage gets its own otter-backed cache.
func buildCacheEngines(cfg config.CacheConfig) (fetcherCache, decoderCache, resizerCache, encoderCache cacheengine.Engine, health []gateway.HealthChecker, err error) {
	switch cfg.Type {
	case config.CacheTypeInMemory:
		fetcherCache, err = cacheengine.NewMemory(0)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		decoderCache, err = cacheengine.NewMemory(0)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		resizerCache, err = cacheengine.NewMemory(0)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		encoderCache, err = cacheengine.NewMemory(0)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		return fetcherCache, decoderCache, resizerCache, encoderCache, nil, nil

	case config.CacheTypeFile:
		disks := make([]*cacheengine.DiskEngine, 4)
		subdirs := []string{"fetched_resource", "decoded_image", "scaled_image", "encoded_image"}
		for i, name := range subdirs {
			d, derr := cacheengine.NewDisk(filepath.Join(cfg.Path, name))
			if derr != nil {
				return nil, nil, nil, nil, nil, derr
			}
			disks[i] = d
			health = append(health, d)
		}
		return disks[0], disks[1], disks[2], disks[3], health, nil

	default:
		return nil, nil, nil, nil, nil, fmt.Errorf("pixvertgw: unrecognized cache type %v", cfg.Type)
	}
}
