package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Env holds settings read from the process environment.
type Env struct {
	Port          string
	DataDir       string
	MaxStorageGB  int64
	MaxMemoryMB   int64
	SupervisorURL string
	Token         string
	DevicesFile   string
	MQTTBroker    string
	MQTTTopic     string
	LogLevel      string
	LogFile       string
	// Statistics is StatisticsWebSocket or StatisticsDownsample.
	Statistics string
}

// Load reads the environment, falling back to defaults for unset or
// malformed values.
func Load() Env {
	return loadFrom(os.Getenv)
}

func loadFrom(getenv func(string) string) Env {
	env := Env{
		Port:          getEnvString(getenv, "PORT", DefaultPort),
		DataDir:       getEnvString(getenv, "HEATCYCLE_DATA_DIR", DefaultDataDir),
		MaxStorageGB:  getEnvInt64(getenv, "HEATCYCLE_MAX_STORAGE_GB", DefaultMaxStorageGB),
		MaxMemoryMB:   getEnvInt64(getenv, "HEATCYCLE_MAX_MEMORY_MB", DefaultMaxMemoryMB),
		SupervisorURL: getEnvString(getenv, "SUPERVISOR_URL", DefaultSupervisorURL),
		Token:         getenv("SUPERVISOR_TOKEN"),
		DevicesFile:   getenv("HEATCYCLE_DEVICES_FILE"),
		MQTTBroker:    getenv("HEATCYCLE_MQTT_BROKER"),
		MQTTTopic:     getEnvString(getenv, "HEATCYCLE_MQTT_TOPIC", DefaultMQTTTopic),
		LogLevel:      getEnvString(getenv, "LOG_LEVEL", DefaultLogLevel),
		LogFile:       getenv("HEATCYCLE_LOG_FILE"),
		Statistics:    StatisticsWebSocket,
	}

	switch mode := strings.ToLower(getenv("HEATCYCLE_STATISTICS_SOURCE")); mode {
	case "", StatisticsWebSocket:
	case StatisticsDownsample:
		env.Statistics = StatisticsDownsample
	default:
		log.Printf("Invalid value for HEATCYCLE_STATISTICS_SOURCE: %q, using %s", mode, StatisticsWebSocket)
	}
	return env
}

// getEnvInt64 gets an int64 from environment variable or returns default.
func getEnvInt64(getenv func(string) string, key string, defaultValue int64) int64 {
	if val := getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil && parsed > 0 {
			return parsed
		}
		log.Printf("Invalid value for %s: %q, using default %d", key, val, defaultValue)
	}
	return defaultValue
}

func getEnvString(getenv func(string) string, key, defaultValue string) string {
	if val := strings.TrimSpace(getenv(key)); val != "" {
		return val
	}
	return defaultValue
}
