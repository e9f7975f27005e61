package main

import (
	"fmt"
	"strings"

	"github.com/uell/livelink/internal/api"
	"github.com/uell/livelink/internal/config"
	"github.com/uell/livelink/internal/database"
	"github.com/uell/livelink/internal/influx"
	"github.com/uell/livelink/internal/storage"
	influxstorage "github.com/uell/livelink/internal/storage/influx"
	"github.com/uell/livelink/internal/storage/memory"
	pgstorage "github.com/uell/livelink/internal/storage/postgres"
	sqlitestorage "github.com/uell/livelink/internal/storage/sqlite"
	wsstorage "github.com/uell/livelink/internal/storage/websocket"
)

// createStorageBackend builds the recorder for storage.type. A comma
// separated type ("memory,influx") fans out to several backends. "none"
// returns a nil backend.
func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	var backends storage.Multi
	for _, typ := range strings.Split(storageCfg.Type, ",") {
		b, err := createOne(strings.TrimSpace(typ), storageCfg)
		if err != nil {
			return nil, err
		}
		if b != nil {
			backends = append(backends, b)
		}
	}

	switch len(backends) {
	case 0:
		return nil, nil
	case 1:
		return backends[0], nil
	default:
		return backends, nil
	}
}

func createOne(typ string, storageCfg config.StorageConfig) (storage.Backend, error) {
	switch typ {
	case "", "none":
		return nil, nil

	case "memory":
		Logger.Info("Memory storage backend selected", "outputDir", storageCfg.Memory.OutputDir)
		var b storage.Backend = memory.New(storageCfg.Memory)
		if uploadCfg := config.GetUploadConfig(); uploadCfg.Enabled {
			b = storage.WithUpload(b, api.New(uploadCfg.URL, uploadCfg.APIKey, uploadCfg.Timeout), Logger)
			Logger.Info("Session upload enabled", "url", uploadCfg.URL)
		}
		return b, nil

	case "sqlite":
		dumpPath := database.DumpPath(storageCfg.SQLite.OutputDir, SessionStartTime)
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     dumpPath,
		}, Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		Logger.Info("SQLite storage backend selected", "dumpPath", dumpPath)
		return backend, nil

	case "postgres":
		Logger.Info("Postgres storage backend selected")
		return pgstorage.New(config.GetDBConfig(), Logger), nil

	case "websocket":
		wsCfg := config.GetWebsocketConfig()
		Logger.Info("WebSocket storage backend selected", "url", wsCfg.URL)
		return wsstorage.New(wsstorage.Config{
			URL:          wsCfg.URL,
			Secret:       wsCfg.Secret,
			AckTimeout:   wsCfg.AckTimeout,
			MaxBackoff:   wsCfg.MaxBackoff,
			QueueSize:    wsCfg.QueueSize,
			WriteTimeout: wsCfg.WriteTimeout,
		}, Logger), nil

	case "influx":
		influxCfg := config.GetInfluxConfig()
		Logger.Info("InfluxDB storage backend selected", "url", influxCfg.URL(), "bucket", influxCfg.Bucket)
		return influxstorage.New(influx.NewManager(influxCfg, ZLogger)), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", typ)
	}
}

type pender interface {
	Pending() int
}

// pendingWrites reports queued database writes across the recorder for
// the status monitor, or nil when nothing queues.
func pendingWrites(b storage.Backend) func() int {
	var queued []pender
	collect := func(b storage.Backend) {
		if p, ok := b.(pender); ok {
			queued = append(queued, p)
		}
	}
	if m, ok := b.(storage.Multi); ok {
		for _, member := range m {
			collect(member)
		}
	} else if b != nil {
		collect(b)
	}
	if len(queued) == 0 {
		return nil
	}
	return func() int {
		n := 0
		for _, p := range queued {
			n += p.Pending()
		}
		return n
	}
}
