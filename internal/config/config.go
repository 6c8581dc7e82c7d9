package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ups-tracking/ups-api/internal/entity"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type (
	Config struct {
		App      App      `env-prefix:"APP_"`
		Logger   Logger   `env-prefix:"LOGGER_"`
		Store    Store    `env-prefix:"STORE_"`
		Mongo    Mongo    `env-prefix:"MONGO_"`
		Postgres Postgres `env-prefix:"DB_"`
		HTTP     HTTP     `env-prefix:"HTTP_"`
		Cache    Cache    `env-prefix:"CACHE_"`
		Redis    Redis    `env-prefix:"REDIS_"`
		Storage  Storage  `env-prefix:"STORAGE_"`
		Tracking Tracking `env-prefix:"TRACKING_"`
		Kafka    Kafka    `env-prefix:"KAFKA_"`
		Events   Events   `env-prefix:"EVENTS_"`
		DLQ      DLQ      `env-prefix:"DLQ_"`
		Metrics  Metrics  `env-prefix:"METRICS_"`
		Env      string   `                       env:"ENV" env-default:"local" validate:"oneof=local dev staging prod"`
	}

	App struct {
		Name    string `env:"NAME"    validate:"required" env-default:"ups-api"`
		Version string `env:"VERSION" validate:"required" env-default:"dev"`
	}

	Store struct {
		Driver           string        `env:"DRIVER"            validate:"oneof=mongo postgres" env-default:"mongo"`
		OperationTimeout time.Duration `env:"OPERATION_TIMEOUT" validate:"gte=10ms,lte=30s"     env-default:"500ms"`
	}

	Mongo struct {
		URI            string        `env:"URI"             env-default:"mongodb://localhost:27017"`
		Database       string        `env:"DATABASE"        env-default:"ups"`
		Collection     string        `env:"COLLECTION"      env-default:"shipments"`
		ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" env-default:"10s"                     validate:"gte=100ms,lte=1m"`
		MaxPoolSize    uint64        `env:"MAX_POOL_SIZE"   env-default:"100"                     validate:"min=1,max=1000"`
	}

	Postgres struct {
		Host           string        `env:"HOST"`
		Port           string        `env:"PORT"             env-default:"5432"`
		Name           string        `env:"NAME"`
		User           string        `env:"USER"`
		Password       string        `env:"PASSWORD"`
		SSLMode        string        `env:"SSL_MODE"         env-default:"disable"`
		PoolMax        int32         `env:"POOL_MAX"         validate:"min=1,max=100"                             env-default:"20"`
		ConnAttempts   int           `env:"CONN_ATTEMPTS"    validate:"min=1,max=10"                              env-default:"5"`
		BaseRetryDelay time.Duration `env:"BASE_RETRY_DELAY" validate:"gte=10ms,lte=10s"                          env-default:"100ms"`
		MaxRetryDelay  time.Duration `env:"MAX_RETRY_DELAY"  validate:"gte=100ms,lte=30s,gtefield=BaseRetryDelay" env-default:"5s"`
		Migrate        bool          `env:"MIGRATE"          env-default:"true"`
	}

	HTTP struct {
		Host              string        `env:"HOST"                validate:"required"                 env-default:"0.0.0.0"`
		Port              string        `env:"PORT"                validate:"required,gte=1,lte=65535" env-default:"5005"`
		ReadTimeout       time.Duration `env:"READ_TIMEOUT"        validate:"gte=10ms,lte=5m"          env-default:"30s"`
		WriteTimeout      time.Duration `env:"WRITE_TIMEOUT"       validate:"gte=10ms,lte=5m"          env-default:"30s"`
		IdleTimeout       time.Duration `env:"IDLE_TIMEOUT"        validate:"gte=10ms,lte=5m"          env-default:"60s"`
		ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT"    validate:"gte=10ms,lte=30s"         env-default:"10s"`
		ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" validate:"gte=10ms,lte=30s"         env-default:"5s"`
		MaxMultipartBytes int64         `env:"MAX_MULTIPART_BYTES" validate:"min=1024"                 env-default:"10485760"`
		MaxImageBytes     int64         `env:"MAX_IMAGE_BYTES"     validate:"min=1024"                 env-default:"10485760"`
		SlowRequest       time.Duration `env:"SLOW_REQUEST"        validate:"lte=1m"                   env-default:"200ms"`
		CORS              CORS          `env-prefix:"CORS_"`
	}

	CORS struct {
		AllowOrigins []string      `env:"ALLOW_ORIGINS" env-separator:"," env-default:"http://localhost:3000,https://ups-chi.vercel.app" validate:"min=1"`
		AllowMethods []string      `env:"ALLOW_METHODS" env-separator:"," env-default:"GET,POST,PATCH,PUT,DELETE"                        validate:"min=1"`
		AllowHeaders []string      `env:"ALLOW_HEADERS" env-separator:"," env-default:"Content-Type"`
		MaxAge       time.Duration `env:"MAX_AGE"       env-default:"12h"`
	}

	Cache struct {
		Driver          string        `env:"DRIVER"           validate:"oneof=memory redis"         env-default:"memory"`
		Capacity        int           `env:"CAPACITY"         validate:"required,min=1,max=1000000" env-default:"10000"`
		TTL             time.Duration `env:"TTL"              validate:"required,gt=0s,lte=24h"     env-default:"30s"`
		CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" validate:"gt=0s,lte=24h"              env-default:"10s"`
	}

	Redis struct {
		Addr     string `env:"ADDR"`
		Password string `env:"PASSWORD"`
		DB       int    `env:"DB"        validate:"min=0,max=15"   env-default:"0"`
		PoolSize int    `env:"POOL_SIZE" validate:"min=1,max=1000" env-default:"20"`
		Prefix   string `env:"PREFIX"    env-default:"ups:shipment:"`
	}

	Storage struct {
		Bucket          string        `env:"BUCKET"           validate:"required"`
		Folder          string        `env:"FOLDER"           validate:"required" env-default:"shipments"`
		CDNDomain       string        `env:"CDN_DOMAIN"`
		CredentialsFile string        `env:"CREDENTIALS_FILE"`
		UploadTimeout   time.Duration `env:"UPLOAD_TIMEOUT"   validate:"gte=1s,lte=10m" env-default:"2m"`
		AllowedTypes    []string      `env:"ALLOWED_TYPES"    env-separator:","         env-default:"image/*"`
		BreakerTrip     uint32        `env:"BREAKER_TRIP"     validate:"min=1,max=100"  env-default:"5"`
		BreakerCooldown time.Duration `env:"BREAKER_COOLDOWN" validate:"gte=1s,lte=10m" env-default:"30s"`
	}

	Tracking struct {
		Prefix        string `env:"PREFIX"         validate:"required"              env-default:"UPS-"`
		MaxAttempts   int    `env:"MAX_ATTEMPTS"   validate:"min=1,max=1000"        env-default:"20"`
		CreateRetries int    `env:"CREATE_RETRIES" validate:"min=1,max=100"         env-default:"5"`
		StatusPolicy  string `env:"STATUS_POLICY"  validate:"oneof=permissive strict" env-default:"permissive"`
	}

	Kafka struct {
		Enabled bool     `env:"ENABLED"  env-default:"false"`
		GroupID string   `env:"GROUP_ID" validate:"required_if=Enabled true"`
		Brokers []string `env:"BROKERS"  validate:"required_if=Enabled true,dive,hostname_port" env-separator:","`
		Topic   string   `env:"TOPIC"    validate:"required_if=Enabled true"`
	}

	Events struct {
		Enabled      bool          `env:"ENABLED"       env-default:"false"`
		Brokers      []string      `env:"BROKERS"       validate:"required_if=Enabled true,dive,hostname_port" env-separator:","`
		Topic        string        `env:"TOPIC"         env-default:"shipment.events"`
		BatchTimeout time.Duration `env:"BATCH_TIMEOUT" validate:"gte=1ms,lte=30s"                            env-default:"10ms"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" validate:"gte=1ms,lte=30s"                            env-default:"2s"`
	}

	DLQ struct {
		GroupID       string        `env:"GROUP_ID"        validate:"required_if=Enabled true"`
		Brokers       []string      `env:"BROKERS"         validate:"required_if=Enabled true,dive,hostname_port" env-separator:","`
		Topic         string        `env:"TOPIC"           env-default:"shipment.status-updates.dlq"`
		Enabled       bool          `env:"ENABLED"         env-default:"false"`
		BatchSize     int           `env:"BATCH_SIZE"      validate:"required,min=1,max=1000"                    env-default:"100"`
		BatchTimeout  time.Duration `env:"BATCH_TIMEOUT"   validate:"required,gte=1ms,lte=30s"                   env-default:"1s"`
		WriteTimeout  time.Duration `env:"WRITE_TIMEOUT"   validate:"required,gte=1ms,lte=30s"                   env-default:"2s"`
		ReadTimeout   time.Duration `env:"READ_TIMEOUT"    validate:"required,gte=1ms,lte=30s"                   env-default:"2s"`
		MaxRetryCount int           `env:"MAX_RETRY_COUNT" validate:"min=1,max=20"                               env-default:"5"`
		RetryDelay    time.Duration `env:"RETRY_DELAY"     validate:"gte=10ms,lte=30s"                           env-default:"100ms"`
	}

	Metrics struct {
		Enabled           bool          `env:"ENABLED"             env-default:"true"`
		Host              string        `env:"HOST"                validate:"required"                 env-default:"0.0.0.0"`
		Port              string        `env:"PORT"                validate:"required,gte=1,lte=65535" env-default:"9090"`
		ReadTimeout       time.Duration `env:"READ_TIMEOUT"        validate:"gte=10ms,lte=30s"         env-default:"5s"`
		WriteTimeout      time.Duration `env:"WRITE_TIMEOUT"       validate:"gte=10ms,lte=30s"         env-default:"5s"`
		ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" validate:"gte=10ms,lte=30s"         env-default:"5s"`
	}

	Logger struct {
		Level      string `env:"LEVEL"       env-default:"info"                validate:"oneof=debug info warn error"`
		Filename   string `env:"FILENAME"    env-default:"./logs/ups-api.log"`
		MaxSize    int    `env:"MAX_SIZE"    env-default:"100"                 validate:"min=1,max=1000"`
		MaxBackups int    `env:"MAX_BACKUPS" env-default:"3"                   validate:"min=0,max=20"`
		MaxAge     int    `env:"MAX_AGE"     env-default:"28"                  validate:"min=1,max=365"`
	}
)

// DSN builds a libpq connection string for the Postgres store.
func (p Postgres) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Name, p.SSLMode,
	)
}

// Load reads the file named by -config or CONFIG_PATH. Without either it falls
// back to the process environment, seeded from a local .env file when present.
func Load() (*Config, error) {
	path := fetchConfigPath()
	if path == "" {
		return LoadEnv()
	}
	return LoadPath(path)
}

func LoadPath(configPath string) (*Config, error) {
	const op = "config.LoadPath"

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: config file does not exist: %s", op, configPath)
	} else if err != nil {
		return nil, fmt.Errorf("%s: checking config file: %w", op, err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: read config: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func LoadEnv(dotenvFiles ...string) (*Config, error) {
	const op = "config.LoadEnv"

	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: load %s: %w", op, f, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: read env: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	validate := validator.New()

	var validationErrors []string
	if err := validate.Struct(c); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			for _, ve := range validationErrs {
				validationErrors = append(validationErrors,
					fmt.Sprintf("%s=%v must satisfy '%s'", ve.Field(), ve.Value(), ve.Tag()))
			}
			return fmt.Errorf("config validation: %w: %v",
				entity.ErrInvalidData, strings.Join(validationErrors, "; "))
		}
		return fmt.Errorf("config validation: %w", err)
	}

	if c.Store.Driver == StorePostgres {
		if c.Postgres.Host == "" || c.Postgres.Name == "" || c.Postgres.User == "" {
			return fmt.Errorf("config validation: %w: DB_HOST, DB_NAME and DB_USER are required for the postgres store",
				entity.ErrInvalidData)
		}
	}
	if c.Cache.Driver == CacheRedis && c.Redis.Addr == "" {
		return fmt.Errorf("config validation: %w: REDIS_ADDR is required for the redis cache", entity.ErrInvalidData)
	}

	return nil
}

func fetchConfigPath() string {
	var path string
	if flag.Lookup("config") == nil {
		flag.StringVar(&path, "config", "", "Path to config file")
		flag.Parse()
	} else {
		path = flag.Lookup("config").Value.String()
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path
}
