package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"proviewer/backend/internal/afdb"
	"proviewer/backend/internal/api"
	"proviewer/backend/internal/esmfold"
)

func main() {
	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		if parsed, err := logrus.ParseLevel(level); err == nil {
			logrus.SetLevel(parsed)
		} else {
			logrus.WithField("value", level).Warn("ignoring invalid LOG_LEVEL")
		}
	}

	baseDir, err := os.Getwd()
	if err != nil {
		logrus.Fatalf("determine working directory: %v", err)
	}

	dataDir := filepath.Join(baseDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logrus.Fatalf("create data directory: %v", err)
	}

	foldCfg := esmfold.Config{
		BaseURL:           os.Getenv("ESMFOLD_BASE_URL"),
		Timeout:           envDuration("ESMFOLD_TIMEOUT"),
		CacheTTL:          envDuration("ESMFOLD_CACHE_TTL"),
		CacheSize:         envInt("ESMFOLD_CACHE_SIZE"),
		MaxSequenceLength: envInt("MAX_SEQUENCE_LENGTH"),
	}

	afdbCfg := afdb.Config{
		BaseURL:      os.Getenv("AFDB_BASE_URL"),
		Timeout:      envDuration("AFDB_TIMEOUT"),
		ModelVersion: envInt("AFDB_MODEL_VERSION"),
	}

	var origins []string
	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}

	cfg := api.Config{
		DBPath:         filepath.Join(dataDir, "proviewer.db"),
		SilentDB:       strings.EqualFold(strings.TrimSpace(os.Getenv("SILENT_DB")), "true"),
		AllowedOrigins: origins,
		ESMFold:        foldCfg,
		AFDB:           afdbCfg,
		MaxUploadBytes: int64(envInt("MAX_UPLOAD_BYTES")),
		ViewTTL:        envDuration("VIEW_TTL"),
	}

	if override := strings.TrimSpace(os.Getenv("PROVIEWER_DB_PATH")); override != "" {
		cfg.DBPath = override
	}

	server, err := api.NewServer(cfg)
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer server.Close()

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.RunJanitor(ctx, time.Hour)

	port := os.Getenv("PORT")
	if port == "" {
		port = "2000"
	}

	logrus.Infof("starting proviewer on :%s", port)
	if err := router.Run(":" + port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}

func envDuration(key string) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "value": value}).Warn("ignoring invalid duration")
		return 0
	}
	return d
}

func envInt(key string) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return 0
	}
	v, err := strconv.Atoi(value)
	if err != nil || v <= 0 {
		logrus.WithFields(logrus.Fields{"key": key, "value": value}).Warn("ignoring invalid integer")
		return 0
	}
	return v
}
