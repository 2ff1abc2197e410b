package models

// MConfig Structure
type MConfig struct {
	Name               string           `yaml:"name"`
	Host               string           `yaml:"host"`
	Port               int              `yaml:"port"`
	LogLevel           string           `yaml:"log_level"`
	GrpcHost           string           `yaml:"grpc_host"`
	GrpcPort           int              `yaml:"grpc_port"`
	CorsAllowedOrigins []string         `yaml:"cors_allowed_origins"`
	MemoryLimitPercent int              `yaml:"memory_limit_percent"` // negative disables
	Storage            MStorageConfig   `yaml:"storage"`
	Network            MNetworkConfig   `yaml:"network"`
	Upstream           MUpstreamConfig  `yaml:"upstream"`
	Websocket          MWebsocketConfig `yaml:"websocket"`
}

type MStorageConfig struct {
	DBType               string `yaml:"db_type"` // sqlite | postgres | redis | none
	DBPath               string `yaml:"db_path"`
	DBConnectionString   string `yaml:"db_connection_string"`
	RedisAddr            string `yaml:"redis_addr"`
	RedisPassword        string `yaml:"redis_password"`
	RedisDB              int    `yaml:"redis_db"`
	FlushIntervalSeconds int    `yaml:"flush_interval_seconds"`
}

type MNetworkConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Proxies        []string `yaml:"proxies"`
	RequestTimeout int      `yaml:"timeout"`
	UserAgent      string   `yaml:"user_agent"`
}

type MUpstreamConfig struct {
	Provider              string `yaml:"provider"`
	KeyID                 string `yaml:"key_id"`
	SecretKey             string `yaml:"secret_key"`
	Feed                  string `yaml:"feed"` // iex | sip | delayed_sip
	ReconnectLimit        int    `yaml:"reconnect_limit"`
	ReconnectDelaySeconds int    `yaml:"reconnect_delay_seconds"`
}

type MWebsocketConfig struct {
	SendBuffer     int   `yaml:"send_buffer"`
	MaxMessageSize int64 `yaml:"max_message_size"`
}
