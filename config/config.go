package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/Ramsey-B/heather/pkg/authority"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"heather"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Database. DB_DRIVER=sqlite runs against DB_SQLITE_PATH instead of PostgreSQL.
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"heather"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseSQLitePath            string        `env:"DB_SQLITE_PATH" env-default:"heather.db"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Search index
	IndexURL            string        `env:"INDEX_URL" env-default:""`
	IndexName           string        `env:"INDEX_NAME" env-default:""`
	IdentityIndexName   string        `env:"IDENTITY_INDEX_NAME" env-default:"identities"`
	IndexIDPath         string        `env:"INDEX_ID_PATH" env-default:"response.docs[].id"`
	IndexTotalPath      string        `env:"INDEX_TOTAL_PATH" env-default:"response.numFound"`
	IndexAuthorityField string        `env:"INDEX_AUTHORITY_FIELD" env-default:"author_authority"`
	IndexScopeField     string        `env:"INDEX_SCOPE_FIELD" env-default:"location"`
	IndexPageSize       int           `env:"INDEX_PAGE_SIZE" env-default:"20"`
	IndexPartialMatch   bool          `env:"INDEX_PARTIAL_MATCH" env-default:"false"`
	IndexTimeout        time.Duration `env:"INDEX_TIMEOUT" env-default:"30s"`

	// Matching
	AuthorityStrategy   string `env:"AUTHORITY_STRATEGY" env-default:"index"`
	ConfidencePolicy    string `env:"CONFIDENCE_POLICY" env-default:"intended"`
	AuthorityFieldsFile string `env:"AUTHORITY_FIELDS_FILE" env-default:"authority-fields.yaml"`
	DefaultRelationName string `env:"DEFAULT_RELATION_NAME" env-default:"publications"`
	DefaultScope        string `env:"DEFAULT_SCOPE" env-default:""`
	BatchLockFile       string `env:"BATCH_LOCK_FILE" env-default:"/tmp/heather-batch.lock"`

	// Redis identity lock
	RedisEnabled  bool          `env:"REDIS_ENABLED" env-default:"false"`
	RedisHost     string        `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
	RedisLockTTL  time.Duration `env:"REDIS_LOCK_TTL" env-default:"10m"`

	// Graph projection
	GraphEnabled    bool   `env:"GRAPH_ENABLED" env-default:"false"`
	GraphDBHost     string `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" env-default:""`

	// Auth
	AuthEnabled   bool   `env:"AUTH_ENABLED" env-default:"false"`
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:""`
	AuthClientID  string `env:"AUTH_CLIENT_ID" env-default:""`

	// Kafka
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaProducerEnabled bool     `env:"KAFKA_PRODUCER_ENABLED" env-default:"false"`
	KafkaOutputTopic     string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"authority-events"`
	KafkaBatchSize       int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout    int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks    int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"false"`
	KafkaInputTopic      string   `env:"KAFKA_INPUT_TOPIC" env-default:"identity-changes"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"heather-consumer"`
	KafkaAutoBind        bool     `env:"KAFKA_AUTO_BIND" env-default:"false"`
	KafkaMaxAttempts     int      `env:"KAFKA_CONSUMER_MAX_ATTEMPTS" env-default:"3"`

	// Tracing
	TraceExporter     string `env:"TRACE_EXPORTER" env-default:"none"`
	TraceOTLPEndpoint string `env:"TRACE_OTLP_ENDPOINT" env-default:"localhost:4317"`
	TraceOTLPProtocol string `env:"TRACE_OTLP_PROTOCOL" env-default:"grpc"`
	TraceOTLPInsecure bool   `env:"TRACE_OTLP_INSECURE" env-default:"true"`
	// TraceOTLPHeaders is "key:value,key:value", e.g. collector auth tokens
	TraceOTLPHeaders map[string]string `env:"TRACE_OTLP_HEADERS"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	return &cfg, nil
}

// Validate reports settings the matching engine cannot run without.
func (c *Config) Validate() error {
	switch {
	case c.IndexURL == "":
		return fmt.Errorf("%w: INDEX_URL", authority.ErrConfigurationMissing)
	case c.IndexName == "":
		return fmt.Errorf("%w: INDEX_NAME", authority.ErrConfigurationMissing)
	case c.AuthorityStrategy == "":
		return fmt.Errorf("%w: AUTHORITY_STRATEGY", authority.ErrConfigurationMissing)
	case c.AuthorityFieldsFile == "":
		return fmt.Errorf("%w: AUTHORITY_FIELDS_FILE", authority.ErrConfigurationMissing)
	case c.DefaultRelationName == "":
		return fmt.Errorf("%w: DEFAULT_RELATION_NAME", authority.ErrConfigurationMissing)
	}
	return nil
}

// DatabaseDSN is the data source name for the configured driver.
func (c *Config) DatabaseDSN() string {
	if c.DatabaseDriver == "sqlite" {
		return c.DatabaseSQLitePath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost, c.DatabasePort, c.DatabaseUserName, c.DatabasePassword, c.DatabaseName, c.DatabaseSSLMode)
}
