package domain

// Config holds the complete FraudShield configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines backing-service defaults
	Tier Tier `json:"tier"`

	// Component configurations
	Store    StoreConfig    `json:"store"`
	EventBus EventBusConfig `json:"eventBus"`
	Engine   EngineConfig   `json:"engine"`
	Auth     AuthConfig     `json:"auth"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// EngineConfig holds prediction-engine tunables. Scoring weights are not
// configurable.
type EngineConfig struct {
	// BatchChunkSize is the number of rows scored between yields during
	// batch prediction. Chunk boundaries never affect computed results.
	BatchChunkSize int `json:"batchChunkSize"`
}

// AuthConfig holds the simulated-login settings. This is a demo credential
// check, not real authentication.
type AuthConfig struct {
	Enabled  bool   `json:"enabled"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
	Endpoint    string `json:"endpoint"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity is the free tier with an in-memory or SQLite store
	// and a channel bus.
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL or Redis plus NATS.
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for the Community tier:
// in-process store and channel bus, auth disabled.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: "./fraudshield.db",
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Engine: EngineConfig{
			BatchChunkSize: 20,
		},
		Auth: AuthConfig{
			Enabled:  false,
			Email:    "admin@gmail.com",
			Password: "admin123",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "fraudshield",
		},
	}
}

// ProConfig returns a configuration for the Pro tier: PostgreSQL store,
// NATS bus, tracing enabled.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Store = StoreConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "fraudshield",
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
