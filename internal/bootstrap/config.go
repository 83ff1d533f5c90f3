package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config 结构体用于存储从环境变量或文件加载的配置
type Config struct {
	DBUser            string
	DBPassword        string
	DBHost            string
	DBPort            string
	DBName            string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	KeyPrefix         string        // Redis Key 前缀
	BoardCacheTTL     time.Duration // 可见状态缓存的过期时间，0 表示不过期
	JWTSecret         string        // 为空时不做认证，单用户模式
	ServerPort        string
	LogLevel          string
	AppEnv            string // development / production
	RateLimitMax      int
	RateLimitWindow   time.Duration
	CORSAllowedOrigin string
	WSAllowedOrigins  []string
	WorkerConcurrency int
	FlushSchedule     string        // 周期性补写任务的 cron 表达式
	SessionIdleTTL    time.Duration // 无客户端的会话保留时长
}

// LoadConfig 从环境变量加载配置
func LoadConfig() (*Config, error) {
	// 优先加载 .env 文件 (如果存在)
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:            os.Getenv("DB_USER"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBHost:            envOr("DB_HOST", "127.0.0.1"),
		DBPort:            envOr("DB_PORT", "3306"),
		DBName:            os.Getenv("DB_NAME"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:         envOr("REDIS_KEY_PREFIX", "pd:"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		ServerPort:        envOr("SERVER_PORT", "8080"),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		AppEnv:            envOr("APP_ENV", "development"),
		CORSAllowedOrigin: envOr("CORS_ALLOWED_ORIGIN", "http://localhost:3000"),
		FlushSchedule:     envOr("FLUSH_SCHEDULE", "@every 1m"),
	}

	var err error
	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = envInt("RATE_LIMIT_MAX", 100); err != nil {
		return nil, err
	}
	if cfg.WorkerConcurrency, err = envInt("WORKER_CONCURRENCY", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = envDuration("RATE_LIMIT_WINDOW", time.Second); err != nil {
		return nil, err
	}
	if cfg.BoardCacheTTL, err = envDuration("BOARD_CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTTL, err = envDuration("SESSION_IDLE_TTL", 2*time.Minute); err != nil {
		return nil, err
	}
	for _, origin := range strings.Split(os.Getenv("WS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.WSAllowedOrigins = append(cfg.WSAllowedOrigins, origin)
		}
	}

	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.DBName == "" || cfg.DBUser == "" {
		return nil, fmt.Errorf("environment variables DB_USER and DB_NAME must be set")
	}
	if cfg.RateLimitMax <= 0 || cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}

	// 验证日志级别
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be an integer: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be a duration: %w", key, err)
	}
	return d, nil
}
