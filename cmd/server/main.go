package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/joeychilson/sitemapgen/cache"
	"github.com/joeychilson/sitemapgen/config"
	"github.com/joeychilson/sitemapgen/logger"
	"github.com/joeychilson/sitemapgen/server"
)

const (
	defaultConfigFile = "./config.yaml"
	defaultLogLevel   = "info"
)

func main() {
	configFile := getEnv("CONFIG_FILE", defaultConfigFile)
	redisURL := getEnv("REDIS_URL", "")
	logLevel := getEnv("LOG_LEVEL", defaultLogLevel)

	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		level = logger.LevelInfo
	}
	log := logger.NewJSON(os.Stderr, level)
	if err != nil {
		log.Warn("unknown log level, using info", "level", logLevel)
	}

	log.Info("starting sitemapgen API server", "log_level", level.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.New()
	if _, statErr := os.Stat(configFile); statErr == nil {
		log.Info("loading config from file", "file", configFile)
		cfg, err = config.LoadConfig(configFile)
		if err != nil {
			log.Error("failed to load config from file", "error", err)
			os.Exit(1)
		}
	} else {
		log.Info("using default configuration (config file not found)", "checked", configFile)
	}

	addr := getEnv("ADDR", cfg.Server.GetAddr())
	cacheConfig := cache.Config{TTL: cfg.Server.Cache.GetTTL()}

	var (
		c           cache.Cache
		redisClient *redis.Client
	)
	if redisURL != "" {
		log.Info("connecting to redis", "url", redisURL)

		rc, err := cache.NewRedisCacheFromURL(redisURL, cacheConfig)
		if err != nil {
			log.Error("failed to parse redis URL", "error", err)
			os.Exit(1)
		}
		if err := rc.Ping(ctx); err != nil {
			log.Error("failed to connect to redis", "error", err, "url", redisURL)
			os.Exit(1)
		}
		log.Info("redis connection established", "url", redisURL)

		c = rc
		redisClient = rc.Client()
	} else {
		log.Info("REDIS_URL not set, using in-memory cache")
		c = cache.NewMemoryCache(cacheConfig)
	}
	defer c.Close()

	srv, err := server.New(c, log, &server.ServerConfig{
		RedisClient:    redisClient,
		RateLimit:      cfg.Server.RateLimit,
		CacheTTL:       cfg.Server.Cache.GetTTL(),
		MaxEntries:     cfg.Server.MaxEntries,
		MaxConnections: cfg.Server.MaxConnections,
		Retry:          cfg.Default.Output.Retry,
	})
	if err != nil {
		log.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := srv.StartWithShutdown(ctx, addr); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	log.Info("server shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
