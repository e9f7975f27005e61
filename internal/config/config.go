package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "livelink.cfg.json"

// ServerConfig holds broadcast server settings
type ServerConfig struct {
	Host          string        `json:"host" mapstructure:"host"`
	Port          int           `json:"port" mapstructure:"port"`
	AcceptTimeout time.Duration `json:"acceptTimeout" mapstructure:"acceptTimeout"`
	WriteTimeout  time.Duration `json:"writeTimeout" mapstructure:"writeTimeout"`
	TickInterval  time.Duration `json:"tickInterval" mapstructure:"tickInterval"`
	// Encoding is one of line, binary, json.
	Encoding string `json:"encoding" mapstructure:"encoding"`
	// Pacer is "rate" (TickInterval) or "frame" (host frame hook).
	Pacer string `json:"pacer" mapstructure:"pacer"`
	// SceneQueue bounds the queued pose, transform and frame pushes.
	SceneQueue int `json:"sceneQueue" mapstructure:"sceneQueue"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds in-memory sqlite backend settings
type SQLiteConfig struct {
	OutputDir    string        `json:"outputDir" mapstructure:"outputDir"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// StorageConfig selects the session recorder
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	SSLMode  string `json:"sslMode" mapstructure:"sslMode"`
}

// DSN returns the postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

// WebsocketConfig holds settings for the remote recorder relay
type WebsocketConfig struct {
	URL          string        `json:"url" mapstructure:"url"`
	Secret       string        `json:"secret" mapstructure:"secret"`
	AckTimeout   time.Duration `json:"ackTimeout" mapstructure:"ackTimeout"`
	MaxBackoff   time.Duration `json:"maxBackoff" mapstructure:"maxBackoff"`
	QueueSize    int           `json:"queueSize" mapstructure:"queueSize"`
	WriteTimeout time.Duration `json:"writeTimeout" mapstructure:"writeTimeout"`
}

type InfluxConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Host      string `json:"host" mapstructure:"host"`
	Port      string `json:"port" mapstructure:"port"`
	Protocol  string `json:"protocol" mapstructure:"protocol"`
	Token     string `json:"token" mapstructure:"token"`
	Org       string `json:"org" mapstructure:"org"`
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	BackupDir string `json:"backupDir" mapstructure:"backupDir"`
}

// URL returns the server url, e.g. http://localhost:8086.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// LogConfig holds log sink settings
type LogConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	Dir        string `json:"dir" mapstructure:"dir"`
	MaxSizeMB  int    `json:"maxSizeMB" mapstructure:"maxSizeMB"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups"`
	// Graylog is enabled when GraylogAddress is non-empty.
	GraylogAddress string `json:"graylogAddress" mapstructure:"graylogAddress"`
}

// UploadConfig holds settings for posting exported sessions to a web frontend
type UploadConfig struct {
	Enabled bool          `json:"enabled" mapstructure:"enabled"`
	URL     string        `json:"url" mapstructure:"url"`
	APIKey  string        `json:"apiKey" mapstructure:"apiKey"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

type MonitorConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Dir      string        `json:"dir" mapstructure:"dir"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A missing file
// is an error; callers may fall back to defaults.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8888)
	viper.SetDefault("server.acceptTimeout", "1s")
	viper.SetDefault("server.writeTimeout", "2s")
	viper.SetDefault("server.tickInterval", "16ms")
	viper.SetDefault("server.encoding", "line")
	viper.SetDefault("server.pacer", "rate")
	viper.SetDefault("server.sceneQueue", 4096)

	viper.SetDefault("storage.type", "none")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.outputDir", "./recordings")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "livelink")
	viper.SetDefault("db.sslMode", "disable")

	viper.SetDefault("websocket.url", "ws://localhost:5000/ws")
	viper.SetDefault("websocket.secret", "")
	viper.SetDefault("websocket.ackTimeout", "5s")
	viper.SetDefault("websocket.maxBackoff", "30s")
	viper.SetDefault("websocket.queueSize", 4096)
	viper.SetDefault("websocket.writeTimeout", "5s")

	viper.SetDefault("influx.enabled", true)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "livelink")
	viper.SetDefault("influx.bucket", "livelink")
	viper.SetDefault("influx.backupDir", "./influx-backup")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "livelink")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.dir", "./livelinklogs")
	viper.SetDefault("log.maxSizeMB", 20)
	viper.SetDefault("log.maxBackups", 5)
	viper.SetDefault("log.graylogAddress", "")

	viper.SetDefault("upload.enabled", false)
	viper.SetDefault("upload.url", "http://localhost:5000")
	viper.SetDefault("upload.apiKey", "")
	viper.SetDefault("upload.timeout", "30s")

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.dir", ".")
	viper.SetDefault("monitor.interval", "1s")
}

// LoadDefaults registers defaults without reading a file.
func LoadDefaults() {
	setDefaults()
}

func GetServerConfig() ServerConfig {
	return ServerConfig{
		Host:          viper.GetString("server.host"),
		Port:          viper.GetInt("server.port"),
		AcceptTimeout: viper.GetDuration("server.acceptTimeout"),
		WriteTimeout:  viper.GetDuration("server.writeTimeout"),
		TickInterval:  viper.GetDuration("server.tickInterval"),
		Encoding:      viper.GetString("server.encoding"),
		Pacer:         viper.GetString("server.pacer"),
		SceneQueue:    viper.GetInt("server.sceneQueue"),
	}
}

func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			OutputDir:    viper.GetString("storage.sqlite.outputDir"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
	}
}

func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
		SSLMode:  viper.GetString("db.sslMode"),
	}
}

func GetWebsocketConfig() WebsocketConfig {
	return WebsocketConfig{
		URL:          viper.GetString("websocket.url"),
		Secret:       viper.GetString("websocket.secret"),
		AckTimeout:   viper.GetDuration("websocket.ackTimeout"),
		MaxBackoff:   viper.GetDuration("websocket.maxBackoff"),
		QueueSize:    viper.GetInt("websocket.queueSize"),
		WriteTimeout: viper.GetDuration("websocket.writeTimeout"),
	}
}

func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:   viper.GetBool("influx.enabled"),
		Host:      viper.GetString("influx.host"),
		Port:      viper.GetString("influx.port"),
		Protocol:  viper.GetString("influx.protocol"),
		Token:     viper.GetString("influx.token"),
		Org:       viper.GetString("influx.org"),
		Bucket:    viper.GetString("influx.bucket"),
		BackupDir: viper.GetString("influx.backupDir"),
	}
}

func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

func GetLogConfig() LogConfig {
	return LogConfig{
		Level:          viper.GetString("log.level"),
		Dir:            viper.GetString("log.dir"),
		MaxSizeMB:      viper.GetInt("log.maxSizeMB"),
		MaxBackups:     viper.GetInt("log.maxBackups"),
		GraylogAddress: viper.GetString("log.graylogAddress"),
	}
}

func GetUploadConfig() UploadConfig {
	return UploadConfig{
		Enabled: viper.GetBool("upload.enabled"),
		URL:     viper.GetString("upload.url"),
		APIKey:  viper.GetString("upload.apiKey"),
		Timeout: viper.GetDuration("upload.timeout"),
	}
}

func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:  viper.GetBool("monitor.enabled"),
		Dir:      viper.GetString("monitor.dir"),
		Interval: viper.GetDuration("monitor.interval"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
