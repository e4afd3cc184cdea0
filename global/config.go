package global

import (
	"os"
	"strconv"
	"time"
)

// AppConfig carries everything the gateway binary needs at boot.
// Values come from the environment; defaults suit local development.
type AppConfig struct {
	NodeID string // gateway node id, also the snowflake node seed
	Port   int    // http listen port

	JWTSecret string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MongoURI string
	MongoDB  string

	NatsURL string // empty disables the cross-gateway relay

	TypingTTL     time.Duration // typing marker expiry
	ConnTTL       time.Duration // connection-owner mapping expiry
	SweepEvery    time.Duration // local dead-connection sweep period
	SendQueueSize int           // per-connection outbound queue
}

func Load() AppConfig {
	return AppConfig{
		NodeID:        envStr("TC_NODE_ID", "gateway_01"),
		Port:          envInt("TC_PORT", 8080),
		JWTSecret:     envStr("TC_JWT_SECRET", "dev-secret-change-me"),
		RedisAddr:     envStr("TC_REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: envStr("TC_REDIS_PASSWORD", ""),
		RedisDB:       envInt("TC_REDIS_DB", 0),
		MongoURI:      envStr("TC_MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:       envStr("TC_MONGO_DB", "transit_chat"),
		NatsURL:       envStr("TC_NATS_URL", ""),
		TypingTTL:     envDur("TC_TYPING_TTL", 3*time.Second),
		ConnTTL:       envDur("TC_CONN_TTL", 2*time.Hour),
		SweepEvery:    envDur("TC_SWEEP_EVERY", 30*time.Second),
		SendQueueSize: envInt("TC_SEND_QUEUE", 256),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
