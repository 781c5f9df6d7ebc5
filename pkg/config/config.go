package config

import "time"

// Server defaults
const (
	DefaultPort         = "8080"
	DefaultDataDir      = "./data/heatcycle"
	DefaultMaxStorageGB = 1
	DefaultMaxMemoryMB  = 48
	DefaultLogLevel     = "info"
)

// Home Assistant connection defaults
const (
	DefaultSupervisorURL = "http://supervisor/core"
	HATimeout            = 30 * time.Second
	HAPingTimeout        = 5 * time.Second
)

// Extraction timeouts and limits
const (
	ExtractTimeout     = 5 * time.Minute
	FetchChunkSize     = 7 * 24 * time.Hour
	DefaultHistoryDays = 30
	MinHistoryDays     = 1
	MaxHistoryDays     = 365
	MaxRequestBytes    = 1 << 20
)

// Statistics modes for HEATCYCLE_STATISTICS_SOURCE
const (
	StatisticsWebSocket  = "websocket"
	StatisticsDownsample = "downsample"
)

// Background task intervals
const (
	DatasetRetention  = 90 * 24 * time.Hour
	RetentionInterval = 1 * time.Hour
	BadgerGCInterval  = 10 * time.Minute
)

// Dataset API timeouts and limits
const (
	DatasetTimeout      = 10 * time.Second
	DatasetListLimit    = 100
	DatasetMaxListLimit = 1000
)

// MQTT defaults
const (
	DefaultMQTTTopic    = "heatcycle/datasets"
	DefaultMQTTClientID = "heatcycle"
	MQTTConnectTimeout  = 10 * time.Second
	MQTTPublishTimeout  = 5 * time.Second
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 256
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
)
