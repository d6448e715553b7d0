package utils

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	PayOS     PayOSConfig
	Policy    PolicyConfig
	Crypto    CryptoConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Scheduler SchedulerConfig
}

type AppConfig struct {
	Name            string
	Port            string
	Debug           bool
	LogPath         string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	MaxConns int32
}

type JWTConfig struct {
	Secret string
}

type PayOSConfig struct {
	BaseURL     string
	ClientID    string
	APIKey      string
	ChecksumKey string
	ReturnURL   string
	CancelURL   string
	Timeout     time.Duration
	LinkTTL     time.Duration
}

// PolicyConfig holds the business knobs for pricing. Fees are basis points.
type PolicyConfig struct {
	PlatformFeeBps     int64
	ExcessDayFeeBps    int64
	ExcessGrace        time.Duration
	MinBookingDuration time.Duration
	MaxBookingDuration time.Duration
	SweepBatchSize     int
}

type CryptoConfig struct {
	FieldKeyHex string
}

type RedisConfig struct {
	Addr            string
	Password        string
	DB              int
	Prefix          string
	BookingLimit    int
	WebhookLimit    int
	RateLimitWindow time.Duration
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type SchedulerConfig struct {
	Enabled              bool
	ExpireSchedule       string
	StartSchedule        string
	StalePendingSchedule string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "car-rental")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 15)
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("PAYOS_BASE_URL", "https://api-merchant.payos.vn")
	viper.SetDefault("PAYOS_TIMEOUT_SECONDS", 10)
	viper.SetDefault("PAYOS_LINK_TTL_MINUTES", 30)
	viper.SetDefault("PLATFORM_FEE_BPS", 1000)
	viper.SetDefault("EXCESS_DAY_FEE_BPS", 10000)
	viper.SetDefault("EXCESS_GRACE_MINUTES", 60)
	viper.SetDefault("MIN_BOOKING_HOURS", 1)
	viper.SetDefault("MAX_BOOKING_DAYS", 90)
	viper.SetDefault("SWEEP_BATCH_SIZE", 100)
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_PREFIX", "car-rental:rate_limit")
	viper.SetDefault("RATE_LIMIT_BOOKING", 10)
	viper.SetDefault("RATE_LIMIT_WEBHOOK", 120)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	viper.SetDefault("RABBITMQ_EXCHANGE", "booking_events")
	viper.SetDefault("SCHEDULER_ENABLED", true)
	viper.SetDefault("SCHEDULE_EXPIRE", "@every 1m")
	viper.SetDefault("SCHEDULE_START", "@every 1m")
	viper.SetDefault("SCHEDULE_STALE_PENDING", "@every 5m")

	viper.AutomaticEnv()

	// .env is optional; the environment alone is enough in containers
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	config := &Config{
		App: AppConfig{
			Name:            viper.GetString("APP_NAME"),
			Port:            viper.GetString("PORT"),
			Debug:           viper.GetBool("DEBUG"),
			LogPath:         viper.GetString("LOG_PATH"),
			ShutdownTimeout: time.Duration(viper.GetInt("SHUTDOWN_TIMEOUT_SECONDS")) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		PayOS: PayOSConfig{
			BaseURL:     viper.GetString("PAYOS_BASE_URL"),
			ClientID:    viper.GetString("PAYOS_CLIENT_ID"),
			APIKey:      viper.GetString("PAYOS_API_KEY"),
			ChecksumKey: viper.GetString("PAYOS_CHECKSUM_KEY"),
			ReturnURL:   viper.GetString("PAYOS_RETURN_URL"),
			CancelURL:   viper.GetString("PAYOS_CANCEL_URL"),
			Timeout:     time.Duration(viper.GetInt("PAYOS_TIMEOUT_SECONDS")) * time.Second,
			LinkTTL:     time.Duration(viper.GetInt("PAYOS_LINK_TTL_MINUTES")) * time.Minute,
		},
		Policy: PolicyConfig{
			PlatformFeeBps:     viper.GetInt64("PLATFORM_FEE_BPS"),
			ExcessDayFeeBps:    viper.GetInt64("EXCESS_DAY_FEE_BPS"),
			ExcessGrace:        time.Duration(viper.GetInt("EXCESS_GRACE_MINUTES")) * time.Minute,
			MinBookingDuration: time.Duration(viper.GetInt("MIN_BOOKING_HOURS")) * time.Hour,
			MaxBookingDuration: time.Duration(viper.GetInt("MAX_BOOKING_DAYS")) * 24 * time.Hour,
			SweepBatchSize:     viper.GetInt("SWEEP_BATCH_SIZE"),
		},
		Crypto: CryptoConfig{
			FieldKeyHex: viper.GetString("FIELD_ENCRYPTION_KEY"),
		},
		Redis: RedisConfig{
			Addr:            viper.GetString("REDIS_ADDR"),
			Password:        viper.GetString("REDIS_PASSWORD"),
			DB:              viper.GetInt("REDIS_DB"),
			Prefix:          viper.GetString("REDIS_PREFIX"),
			BookingLimit:    viper.GetInt("RATE_LIMIT_BOOKING"),
			WebhookLimit:    viper.GetInt("RATE_LIMIT_WEBHOOK"),
			RateLimitWindow: time.Duration(viper.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
		},
		RabbitMQ: RabbitMQConfig{
			URL:      viper.GetString("RABBITMQ_URL"),
			Exchange: viper.GetString("RABBITMQ_EXCHANGE"),
		},
		Scheduler: SchedulerConfig{
			Enabled:              viper.GetBool("SCHEDULER_ENABLED"),
			ExpireSchedule:       viper.GetString("SCHEDULE_EXPIRE"),
			StartSchedule:        viper.GetString("SCHEDULE_START"),
			StalePendingSchedule: viper.GetString("SCHEDULE_STALE_PENDING"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects configurations the ledger cannot run with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Policy.PlatformFeeBps < 0 || c.Policy.PlatformFeeBps > 10000 {
		return errors.New("PLATFORM_FEE_BPS must be between 0 and 10000")
	}
	if c.Policy.ExcessDayFeeBps < 0 {
		return errors.New("EXCESS_DAY_FEE_BPS must not be negative")
	}
	if c.Policy.MinBookingDuration <= 0 {
		return errors.New("MIN_BOOKING_HOURS must be positive")
	}
	if c.PayOS.Timeout <= 0 {
		return errors.New("PAYOS_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
