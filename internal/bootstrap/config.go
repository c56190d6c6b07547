package bootstrap

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerAddr string
	LogLevel   string

	// RedisAddr left empty disables the shared store; the directory
	// then runs purely in-memory.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DefaultRoomCapacity int
	EmptyRoomGrace      time.Duration
	RoomMirrorTTL       time.Duration

	MaxFailures     int
	FreshnessWindow time.Duration

	MaxRestarts     int
	RestartCooldown time.Duration
	StaleThreshold  time.Duration

	CandidateStaleAfter time.Duration

	SweepInterval time.Duration
	SendBufferLen int
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DefaultRoomCapacity: getEnvInt("ROOM_DEFAULT_CAPACITY", 10),
		EmptyRoomGrace:      getEnvDuration("ROOM_EMPTY_GRACE", 5*time.Minute),
		RoomMirrorTTL:       getEnvDuration("ROOM_MIRROR_TTL", 24*time.Hour),

		MaxFailures:     getEnvInt("SIGNALING_MAX_FAILURES", 3),
		FreshnessWindow: getEnvDuration("SIGNALING_FRESHNESS_WINDOW", 30*time.Second),

		MaxRestarts:     getEnvInt("PEER_MAX_RESTARTS", 2),
		RestartCooldown: getEnvDuration("PEER_RESTART_COOLDOWN", 5*time.Second),
		StaleThreshold:  getEnvDuration("PEER_STALE_THRESHOLD", 60*time.Second),

		CandidateStaleAfter: getEnvDuration("ICE_CANDIDATE_STALE_AFTER", 120*time.Second),

		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 30*time.Second),
		SendBufferLen: getEnvInt("WS_SEND_BUFFER", 128),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
