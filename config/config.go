package config

import (
	"fmt"
	"strings"
	"time"

	C "multitouch/cache/redis"
	"multitouch/model/model"

	"github.com/evalphobia/logrus_sentry"
	"github.com/gomodule/redigo/redis"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const DEVELOPMENT = "development"

// Environment variables are read with this prefix, i.e ATTRIBUTION_LOOKBACK_DAYS.
const envPrefix = "attribution"

type DBConf struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Name     string `json:"name"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl_mode" split_words:"true"`
}

type Configuration struct {
	Env     string `json:"env"`
	AppName string `json:"app_name" split_words:"true"`
	DBInfo  DBConf `json:"db" envconfig:"DB"`
	// Redis is optional. Report caching and the batch lock are
	// disabled when the host is empty.
	RedisHost string `json:"redis_host" split_words:"true"`
	RedisPort int    `json:"redis_port" split_words:"true"`
	SentryDSN string `json:"sentry_dsn" envconfig:"SENTRY_DSN"`

	LookbackDays          int     `json:"lookback_days" split_words:"true"`
	TimeDecayHalfLifeDays float64 `json:"time_decay_half_life_days" split_words:"true"`
	PositionFirstWeight   float64 `json:"position_first_weight" split_words:"true"`
	PositionLastWeight    float64 `json:"position_last_weight" split_words:"true"`
	TouchRetentionDays    int     `json:"touch_retention_days" split_words:"true"`

	BatchSize   int `json:"batch_size" split_words:"true"`
	NumRoutines int `json:"num_routines" split_words:"true"`
	// Processing claims older than this are considered abandoned.
	ClaimTTLSeconds  int64 `json:"claim_ttl_seconds" split_words:"true"`
	MaxClaimAttempts int   `json:"max_claim_attempts" split_words:"true"`
	// 0 disables report caching.
	ReportCacheTTLSeconds int64 `json:"report_cache_ttl_seconds" split_words:"true"`
	// Expiry of the lock held by a batch run.
	BatchLockTTLSeconds int64 `json:"batch_lock_ttl_seconds" split_words:"true"`
}

func DefaultConfiguration() *Configuration {
	return &Configuration{
		Env:     DEVELOPMENT,
		AppName: "multitouch",
		DBInfo: DBConf{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			Name:    "attribution",
			SSLMode: "disable",
		},
		RedisPort: 6379,

		LookbackDays:          30,
		TimeDecayHalfLifeDays: model.DefaultTimeDecayHalfLifeDays,
		PositionFirstWeight:   model.DefaultPositionFirstWeight,
		PositionLastWeight:    model.DefaultPositionLastWeight,
		TouchRetentionDays:    90,

		BatchSize:             100,
		NumRoutines:           10,
		ClaimTTLSeconds:       15 * 60,
		MaxClaimAttempts:      3,
		ReportCacheTTLSeconds: 5 * 60,
		BatchLockTTLSeconds:   60 * 60,
	}
}

// Load - Defaults overridden by the ATTRIBUTION_* environment variables.
func Load() (*Configuration, error) {
	configuration := DefaultConfiguration()
	if err := envconfig.Process(envPrefix, configuration); err != nil {
		return nil, errors.Wrap(err, "failed to process environment config")
	}

	if err := configuration.Validate(); err != nil {
		return nil, err
	}

	return configuration, nil
}

func (c *Configuration) Validate() error {
	if c.LookbackDays <= 0 {
		return fmt.Errorf("invalid lookback days %d", c.LookbackDays)
	}
	if c.TimeDecayHalfLifeDays <= 0 {
		return fmt.Errorf("invalid time decay half life %v", c.TimeDecayHalfLifeDays)
	}
	if c.PositionFirstWeight < 0 || c.PositionLastWeight < 0 ||
		c.PositionFirstWeight+c.PositionLastWeight > 1 {
		return fmt.Errorf("invalid position based weights first %v last %v",
			c.PositionFirstWeight, c.PositionLastWeight)
	}
	// Touches must outlive the lookback window of conversions still to be scored.
	if c.TouchRetentionDays < c.LookbackDays {
		return fmt.Errorf("touch retention days %d less than lookback days %d",
			c.TouchRetentionDays, c.LookbackDays)
	}
	if c.BatchSize <= 0 || c.NumRoutines <= 0 {
		return fmt.Errorf("invalid batch size %d or num routines %d", c.BatchSize, c.NumRoutines)
	}
	if c.ClaimTTLSeconds <= 0 || c.MaxClaimAttempts <= 0 {
		return fmt.Errorf("invalid claim ttl %d or max claim attempts %d",
			c.ClaimTTLSeconds, c.MaxClaimAttempts)
	}
	if c.ReportCacheTTLSeconds < 0 || c.BatchLockTTLSeconds < 0 {
		return fmt.Errorf("invalid cache ttl %d or batch lock ttl %d",
			c.ReportCacheTTLSeconds, c.BatchLockTTLSeconds)
	}
	return nil
}

func (c *Configuration) IsDevelopment() bool {
	return strings.Compare(c.Env, DEVELOPMENT) == 0
}

func (c *Configuration) IsRedisEnabled() bool {
	return c.RedisHost != ""
}

// AttributionMethodConfig - Tunables of the weighted attribution methods.
func (c *Configuration) AttributionMethodConfig() *model.AttributionMethodConfig {
	return &model.AttributionMethodConfig{
		TimeDecayHalfLifeDays: c.TimeDecayHalfLifeDays,
		PositionFirstWeight:   c.PositionFirstWeight,
		PositionLastWeight:    c.PositionLastWeight,
	}
}

func (c *Configuration) GetPostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s password=%s sslmode=%s",
		c.DBInfo.Host,
		c.DBInfo.Port,
		c.DBInfo.User,
		c.DBInfo.Name,
		c.DBInfo.Password,
		c.DBInfo.SSLMode)
}

// InitLogging - JSON logs, errors reported to sentry when a DSN is configured.
func InitLogging(c *Configuration) error {
	// Log as JSON instead of the default ASCII formatter.
	log.SetFormatter(&log.JSONFormatter{})

	if c.IsDevelopment() {
		log.SetLevel(log.DebugLevel)
	}

	if c.SentryDSN == "" {
		return nil
	}

	hook, err := logrus_sentry.NewSentryHook(c.SentryDSN, []log.Level{
		log.PanicLevel,
		log.FatalLevel,
		log.ErrorLevel,
	})
	if err != nil {
		log.WithError(err).Error("Failed to initialize sentry hook.")
		return err
	}
	hook.Timeout = 5 * time.Second
	hook.StacktraceConfiguration.Enable = true
	log.AddHook(hook)

	return nil
}

type Services struct {
	Db    *gorm.DB
	Redis *redis.Pool
}

func initDB(c *Configuration) (*gorm.DB, error) {
	db, err := gorm.Open("postgres", c.GetPostgresDSN())
	if err != nil {
		log.WithError(err).Error("Failed Db Initialization")
		return nil, err
	}

	// Connection Pooling and Logging.
	db.DB().SetMaxIdleConns(10)
	db.DB().SetMaxOpenConns(100)
	db.LogMode(c.IsDevelopment())

	log.Info("Db Service initialized")
	return db, nil
}

func initRedis(c *Configuration) (*redis.Pool, error) {
	pool := C.NewPool(c.RedisHost, c.RedisPort)

	conn := pool.Get()
	defer conn.Close()
	if _, err := conn.Do("PING"); err != nil {
		log.WithError(err).WithFields(log.Fields{"host": c.RedisHost,
			"port": c.RedisPort}).Error("Failed Redis Initialization")
		pool.Close()
		return nil, err
	}

	log.Info("Redis Service initialized")
	return pool, nil
}

// InitServices - Connects to the db and, when configured, redis.
func InitServices(c *Configuration) (*Services, error) {
	db, err := initDB(c)
	if err != nil {
		return nil, err
	}

	services := &Services{Db: db}
	if !c.IsRedisEnabled() {
		return services, nil
	}

	services.Redis, err = initRedis(c)
	if err != nil {
		db.Close()
		return nil, err
	}

	return services, nil
}

func (s *Services) Close() {
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.WithError(err).Error("Failed to close redis pool.")
		}
	}

	if s.Db != nil {
		if err := s.Db.Close(); err != nil {
			log.WithError(err).Error("Failed to close db.")
		}
	}
}
