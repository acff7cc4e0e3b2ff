package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const timeLayout = "2006-01-02 15:04:05"

type Config struct {
	Job      JobConfig
	Model    ModelConfig
	Output   OutputConfig
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig
	Minio    MinioConfig
	Metrics  MetricsConfig
	Server   ServerConfig
	JWT      JWTConfig
	CORS     CORSConfig
}

type JobConfig struct {
	// Local is set from the command line, never from the environment.
	Local          bool
	LocalFile      string
	InputsDir      string
	DIDs           string
	MultiAsset     bool
	Pollutant      string
	SplitThreshold time.Time
	Hour24Policy   string
	AggGranularity string
	EncodingPath   string
	PlotPath       string
	HourlyStart    time.Time
	HourlyEnd      time.Time
	MonthlyStart   time.Time
	MonthlyEnd     time.Time
	RunInterval    time.Duration
}

type ModelConfig struct {
	Kind               string
	Version            string
	LearningRate       float64
	MaxIter            int
	ValidationFraction float64
	MaxLeafNodes       int
	MinSamplesLeaf     int
	MaxBins            int
	L2Regularization   float64
	EarlyStopping      string
	Seed               int
}

type OutputConfig struct {
	Format     string
	ResultPath string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// GetDSN prefers DB_DSN when set and falls back to the discrete settings.
func (d DatabaseConfig) GetDSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type RedisConfig struct {
	URL      string
	Host     string
	Port     int
	Password string
	DB       int
}

type MQTTConfig struct {
	URL         string
	TopicPrefix string
	ClientID    string
}

type MinioConfig struct {
	URL       string
	AccessKey string
	SecretKey string
	Secure    bool
	Bucket    string
	Location  string
}

type MetricsConfig struct {
	PushgatewayURL string
	Addr           string
}

type ServerConfig struct {
	Port int
}

type JWTConfig struct {
	Secret               string
	ExpiryHours          int
	OperatorUser         string
	OperatorPasswordHash string
}

type CORSConfig struct {
	AllowedOrigins string
}

// fileConfig mirrors the subset of settings accepted from the AQI_CONFIG YAML file.
type fileConfig struct {
	Job struct {
		LocalFile      string `yaml:"local_file"`
		InputsDir      string `yaml:"inputs_dir"`
		MultiAsset     *bool  `yaml:"multi_asset"`
		Pollutant      string `yaml:"pollutant"`
		SplitThreshold string `yaml:"split_threshold"`
		Hour24Policy   string `yaml:"hour24_policy"`
		AggGranularity string `yaml:"agg_granularity"`
		EncodingPath   string `yaml:"encoding_path"`
		PlotPath       string `yaml:"plot_path"`
		HourlyStart    string `yaml:"hourly_start"`
		HourlyEnd      string `yaml:"hourly_end"`
		MonthlyStart   string `yaml:"monthly_start"`
		MonthlyEnd     string `yaml:"monthly_end"`
	} `yaml:"job"`
	Model struct {
		Kind               string   `yaml:"kind"`
		Version            string   `yaml:"version"`
		LearningRate       *float64 `yaml:"learning_rate"`
		MaxIter            *int     `yaml:"max_iter"`
		ValidationFraction *float64 `yaml:"validation_fraction"`
		MaxLeafNodes       *int     `yaml:"max_leaf_nodes"`
		MinSamplesLeaf     *int     `yaml:"min_samples_leaf"`
		MaxBins            *int     `yaml:"max_bins"`
		L2Regularization   *float64 `yaml:"l2_regularization"`
		EarlyStopping      string   `yaml:"early_stopping"`
		Seed               *int     `yaml:"seed"`
	} `yaml:"model"`
	Output struct {
		Format     string `yaml:"format"`
		ResultPath string `yaml:"result_path"`
	} `yaml:"output"`
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by AQI_CONFIG and the environment, in increasing precedence. A .env
// file in the working directory is loaded first when present.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("could not load .env: %v", err)
	}

	cfg := defaultConfig()

	if path := getEnv("AQI_CONFIG", ""); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Job: JobConfig{
			LocalFile:      "aqi_data.csv",
			InputsDir:      "data/inputs",
			Pollutant:      "O3",
			SplitThreshold: mustTime("2019-01-01 00:00:00"),
			Hour24Policy:   "same-day",
			AggGranularity: "hourly",
			EncodingPath:   "encoding.json",
			PlotPath:       "mean_pollutant.png",
			HourlyStart:    mustTime("2023-02-15 00:00:00"),
			HourlyEnd:      mustTime("2023-02-28 00:00:00"),
			MonthlyStart:   mustTime("2023-01-01 00:00:00"),
			MonthlyEnd:     mustTime("2024-12-31 00:00:00"),
		},
		Model: ModelConfig{
			Kind:               "gbm",
			Version:            "hgb-v1",
			LearningRate:       0.05,
			MaxIter:            200,
			ValidationFraction: 0.15,
			MaxLeafNodes:       31,
			MinSamplesLeaf:     20,
			MaxBins:            255,
			EarlyStopping:      "auto",
			Seed:               42,
		},
		Output: OutputConfig{
			Format:     "gob",
			ResultPath: "/data/outputs/result",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "aqi",
			Name:    "aqi",
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		MQTT: MQTTConfig{
			TopicPrefix: "aqi",
		},
		Minio: MinioConfig{
			Bucket: "aqi-results",
		},
		Server: ServerConfig{
			Port: 8080,
		},
		JWT: JWTConfig{
			ExpiryHours:  24,
			OperatorUser: "operator",
		},
		CORS: CORSConfig{
			AllowedOrigins: "*",
		},
	}
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.Job.LocalFile, fc.Job.LocalFile)
	setString(&cfg.Job.InputsDir, fc.Job.InputsDir)
	if fc.Job.MultiAsset != nil {
		cfg.Job.MultiAsset = *fc.Job.MultiAsset
	}
	setString(&cfg.Job.Pollutant, fc.Job.Pollutant)
	setString(&cfg.Job.Hour24Policy, fc.Job.Hour24Policy)
	setString(&cfg.Job.AggGranularity, fc.Job.AggGranularity)
	setString(&cfg.Job.EncodingPath, fc.Job.EncodingPath)
	setString(&cfg.Job.PlotPath, fc.Job.PlotPath)

	times := []struct {
		dst *time.Time
		raw string
		key string
	}{
		{&cfg.Job.SplitThreshold, fc.Job.SplitThreshold, "split_threshold"},
		{&cfg.Job.HourlyStart, fc.Job.HourlyStart, "hourly_start"},
		{&cfg.Job.HourlyEnd, fc.Job.HourlyEnd, "hourly_end"},
		{&cfg.Job.MonthlyStart, fc.Job.MonthlyStart, "monthly_start"},
		{&cfg.Job.MonthlyEnd, fc.Job.MonthlyEnd, "monthly_end"},
	}
	for _, t := range times {
		if t.raw == "" {
			continue
		}
		parsed, err := parseTime(t.raw)
		if err != nil {
			return fmt.Errorf("invalid %s in %s: %w", t.key, path, err)
		}
		*t.dst = parsed
	}

	setString(&cfg.Model.Kind, fc.Model.Kind)
	setString(&cfg.Model.Version, fc.Model.Version)
	setString(&cfg.Model.EarlyStopping, fc.Model.EarlyStopping)
	if fc.Model.LearningRate != nil {
		cfg.Model.LearningRate = *fc.Model.LearningRate
	}
	if fc.Model.MaxIter != nil {
		cfg.Model.MaxIter = *fc.Model.MaxIter
	}
	if fc.Model.ValidationFraction != nil {
		cfg.Model.ValidationFraction = *fc.Model.ValidationFraction
	}
	if fc.Model.MaxLeafNodes != nil {
		cfg.Model.MaxLeafNodes = *fc.Model.MaxLeafNodes
	}
	if fc.Model.MinSamplesLeaf != nil {
		cfg.Model.MinSamplesLeaf = *fc.Model.MinSamplesLeaf
	}
	if fc.Model.MaxBins != nil {
		cfg.Model.MaxBins = *fc.Model.MaxBins
	}
	if fc.Model.L2Regularization != nil {
		cfg.Model.L2Regularization = *fc.Model.L2Regularization
	}
	if fc.Model.Seed != nil {
		cfg.Model.Seed = *fc.Model.Seed
	}

	setString(&cfg.Output.Format, fc.Output.Format)
	setString(&cfg.Output.ResultPath, fc.Output.ResultPath)
	return nil
}

func applyEnv(cfg *Config) error {
	var err error

	cfg.Job.LocalFile = getEnv("LOCAL_FILE", cfg.Job.LocalFile)
	cfg.Job.InputsDir = getEnv("INPUTS_DIR", cfg.Job.InputsDir)
	cfg.Job.DIDs = os.Getenv("DIDS")
	if cfg.Job.MultiAsset, err = getBoolEnv("MULTI_ASSET", cfg.Job.MultiAsset); err != nil {
		return fmt.Errorf("invalid MULTI_ASSET: %w", err)
	}
	cfg.Job.Pollutant = getEnv("POLLUTANT", cfg.Job.Pollutant)
	if cfg.Job.SplitThreshold, err = getTimeEnv("SPLIT_THRESHOLD", cfg.Job.SplitThreshold); err != nil {
		return fmt.Errorf("invalid SPLIT_THRESHOLD: %w", err)
	}
	cfg.Job.Hour24Policy = getEnv("HOUR24_POLICY", cfg.Job.Hour24Policy)
	cfg.Job.AggGranularity = getEnv("AGG_GRANULARITY", cfg.Job.AggGranularity)
	cfg.Job.EncodingPath = getEnv("ENCODING_PATH", cfg.Job.EncodingPath)
	cfg.Job.PlotPath = getEnv("PLOT_PATH", cfg.Job.PlotPath)
	if cfg.Job.HourlyStart, err = getTimeEnv("HOURLY_START", cfg.Job.HourlyStart); err != nil {
		return fmt.Errorf("invalid HOURLY_START: %w", err)
	}
	if cfg.Job.HourlyEnd, err = getTimeEnv("HOURLY_END", cfg.Job.HourlyEnd); err != nil {
		return fmt.Errorf("invalid HOURLY_END: %w", err)
	}
	if cfg.Job.MonthlyStart, err = getTimeEnv("MONTHLY_START", cfg.Job.MonthlyStart); err != nil {
		return fmt.Errorf("invalid MONTHLY_START: %w", err)
	}
	if cfg.Job.MonthlyEnd, err = getTimeEnv("MONTHLY_END", cfg.Job.MonthlyEnd); err != nil {
		return fmt.Errorf("invalid MONTHLY_END: %w", err)
	}
	intervalSec, err := getIntEnv("RUN_INTERVAL_SEC", int(cfg.Job.RunInterval/time.Second))
	if err != nil {
		return fmt.Errorf("invalid RUN_INTERVAL_SEC: %w", err)
	}
	cfg.Job.RunInterval = time.Duration(intervalSec) * time.Second

	cfg.Model.Kind = getEnv("MODEL", cfg.Model.Kind)
	cfg.Model.Version = getEnv("MODEL_VERSION", cfg.Model.Version)
	if cfg.Model.LearningRate, err = getFloatEnv("LEARNING_RATE", cfg.Model.LearningRate); err != nil {
		return fmt.Errorf("invalid LEARNING_RATE: %w", err)
	}
	if cfg.Model.MaxIter, err = getIntEnv("MAX_ITER", cfg.Model.MaxIter); err != nil {
		return fmt.Errorf("invalid MAX_ITER: %w", err)
	}
	if cfg.Model.ValidationFraction, err = getFloatEnv("VALIDATION_FRACTION", cfg.Model.ValidationFraction); err != nil {
		return fmt.Errorf("invalid VALIDATION_FRACTION: %w", err)
	}
	cfg.Model.EarlyStopping = getEnv("EARLY_STOPPING", cfg.Model.EarlyStopping)
	if cfg.Model.Seed, err = getIntEnv("MODEL_SEED", cfg.Model.Seed); err != nil {
		return fmt.Errorf("invalid MODEL_SEED: %w", err)
	}

	cfg.Output.Format = getEnv("OUTPUT_FORMAT", cfg.Output.Format)
	cfg.Output.ResultPath = getEnv("RESULT_PATH", cfg.Output.ResultPath)

	cfg.Database.URL = getEnv("DB_DSN", cfg.Database.URL)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	if cfg.Database.Port, err = getIntEnv("DB_PORT", cfg.Database.Port); err != nil {
		return fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.Redis.URL = getEnv("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Host = getEnv("REDIS_HOST", cfg.Redis.Host)
	if cfg.Redis.Port, err = getIntEnv("REDIS_PORT", cfg.Redis.Port); err != nil {
		return fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	if cfg.Redis.DB, err = getIntEnv("REDIS_DB", cfg.Redis.DB); err != nil {
		return fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg.MQTT.URL = getEnv("MQTT_URL", cfg.MQTT.URL)
	cfg.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", cfg.MQTT.TopicPrefix)
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", cfg.MQTT.ClientID)

	cfg.Minio.URL = getEnv("MINIO_URL", cfg.Minio.URL)
	cfg.Minio.AccessKey = getEnv("MINIO_ACCESS_KEY", cfg.Minio.AccessKey)
	cfg.Minio.SecretKey = getEnv("MINIO_SECRET_KEY", cfg.Minio.SecretKey)
	if cfg.Minio.Secure, err = getBoolEnv("MINIO_SECURE", cfg.Minio.Secure); err != nil {
		return fmt.Errorf("invalid MINIO_SECURE: %w", err)
	}
	cfg.Minio.Bucket = getEnv("MINIO_BUCKET", cfg.Minio.Bucket)
	cfg.Minio.Location = getEnv("MINIO_LOCATION", cfg.Minio.Location)

	cfg.Metrics.PushgatewayURL = getEnv("PUSHGATEWAY_URL", cfg.Metrics.PushgatewayURL)
	cfg.Metrics.Addr = getEnv("METRICS_ADDR", cfg.Metrics.Addr)

	if cfg.Server.Port, err = getIntEnv("SERVER_PORT", cfg.Server.Port); err != nil {
		return fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	cfg.JWT.Secret = getEnv("JWT_SECRET", cfg.JWT.Secret)
	if cfg.JWT.ExpiryHours, err = getIntEnv("JWT_EXPIRY_HOURS", cfg.JWT.ExpiryHours); err != nil {
		return fmt.Errorf("invalid JWT_EXPIRY_HOURS: %w", err)
	}
	cfg.JWT.OperatorUser = getEnv("OPERATOR_USER", cfg.JWT.OperatorUser)
	cfg.JWT.OperatorPasswordHash = getEnv("OPERATOR_PASSWORD_HASH", cfg.JWT.OperatorPasswordHash)

	cfg.CORS.AllowedOrigins = getEnv("CORS_ALLOWED_ORIGINS", cfg.CORS.AllowedOrigins)
	return nil
}

func (c *Config) validate() error {
	switch c.Job.Hour24Policy {
	case "same-day", "next-day":
	default:
		return fmt.Errorf("invalid HOUR24_POLICY %q: want same-day or next-day", c.Job.Hour24Policy)
	}
	switch c.Job.AggGranularity {
	case "hourly", "monthly":
	default:
		return fmt.Errorf("invalid AGG_GRANULARITY %q: want hourly or monthly", c.Job.AggGranularity)
	}
	switch c.Model.Kind {
	case "gbm", "linear":
	default:
		return fmt.Errorf("invalid MODEL %q: want gbm or linear", c.Model.Kind)
	}
	switch c.Output.Format {
	case "gob", "json", "parquet":
	default:
		return fmt.Errorf("invalid OUTPUT_FORMAT %q: want gob, json or parquet", c.Output.Format)
	}
	if c.Job.HourlyEnd.Before(c.Job.HourlyStart) {
		return errors.New("HOURLY_END is before HOURLY_START")
	}
	if c.Job.MonthlyEnd.Before(c.Job.MonthlyStart) {
		return errors.New("MONTHLY_END is before MONTHLY_START")
	}
	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func mustTime(value string) time.Time {
	t, err := parseTime(value)
	if err != nil {
		panic(err)
	}
	return t
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func getFloatEnv(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(value, 64)
}

func getBoolEnv(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseBool(value)
}

func getTimeEnv(key string, fallback time.Time) (time.Time, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return parseTime(value)
}
