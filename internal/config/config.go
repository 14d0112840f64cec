package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variables before they are mapped
// onto config paths: RECON_LOG_LEVEL -> log.level.
const EnvPrefix = "RECON_"

// Schema hints accepted by the ingester.
const (
	SchemaDelimitedJSON    = "delimited_with_json_cell"
	SchemaSpreadsheetWide  = "spreadsheet_wide"
	SchemaSpreadsheetTitle = "spreadsheet_with_title_row"
)

// Config holds every run setting.
type Config struct {
	TargetAirport string `koanf:"target_airport" validate:"required,len=4,uppercase"`
	Orientation   string `koanf:"orientation" validate:"oneof=arrival departure"`
	ReportingDate string `koanf:"reporting_date" validate:"omitempty,datetime=2006-01-02"`
	Month         string `koanf:"month" validate:"omitempty,datetime=2006-01"`
	OutputDir     string `koanf:"output_dir" validate:"required"`

	Sources  []SourceConfig                 `koanf:"sources" validate:"required,min=1,dive"`
	Mappings map[string]map[string][]string `koanf:"mappings"`

	ComparedFields      []string      `koanf:"compared_fields" validate:"min=1"`
	AuditFields         []AuditField  `koanf:"audit_fields" validate:"dive"`
	EmptyValueSuffixes  []string      `koanf:"empty_value_suffixes"`
	Threshold           float64       `koanf:"threshold" validate:"gte=0,lte=1"`
	ForeignAirlineRegex string        `koanf:"foreign_airline_pattern"`
	Workers             int           `koanf:"workers" validate:"gte=1,lte=31"`
	WriteParquet        bool          `koanf:"parquet"`
	ShutdownTimeout     time.Duration `koanf:"shutdown_timeout"`

	Log         LogConfig         `koanf:"log"`
	HTTPAddr    string            `koanf:"http_addr"`
	MetricsFile string            `koanf:"metrics_textfile"`
	Kafka       KafkaConfig       `koanf:"kafka"`
	ObjectStore ObjectStoreConfig `koanf:"object_store"`
}

// SourceConfig describes one input file. Path may contain {date}, expanded
// to YYYYMMDD for the reporting day.
type SourceConfig struct {
	Path             string   `koanf:"path" validate:"required"`
	Stream           string   `koanf:"stream" validate:"oneof=PLAN DYN_DEP DYN_ARR OBS"`
	Schema           string   `koanf:"schema" validate:"oneof=delimited_with_json_cell spreadsheet_wide spreadsheet_with_title_row"`
	PayloadColumn    string   `koanf:"payload_column"`
	MessageColumn    string   `koanf:"message_type_column"`
	InsertTimeColumn string   `koanf:"insert_time_column"`
	ImplicitTimeCols []string `koanf:"implicit_time_columns"`
	Encoding         string   `koanf:"encoding" validate:"omitempty,oneof=utf-8 gbk"`
	Delimiter        string   `koanf:"delimiter" validate:"omitempty,len=1"`
	Sheet            string   `koanf:"sheet"`
}

// AuditField is one row of the required-field table.
type AuditField struct {
	Name     string `koanf:"name" validate:"required"`
	Label    string `koanf:"label" validate:"required"`
	Required bool   `koanf:"required"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// KafkaConfig enables publication of comparison records when Brokers is set.
type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

// Enabled reports whether comparison publication is configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// ObjectStoreConfig enables s3:// inputs and, with Bucket set, bucket outputs.
type ObjectStoreConfig struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Region    string `koanf:"region"`
	UseSSL    bool   `koanf:"use_ssl"`
	Bucket    string `koanf:"bucket"`
	Prefix    string `koanf:"prefix"`
}

// Enabled reports whether an object store endpoint is configured.
func (o ObjectStoreConfig) Enabled() bool { return o.Endpoint != "" }

// DefaultAuditFields is the static required-field table.
var DefaultAuditFields = []AuditField{
	{Name: "flight_no", Label: "FlightNo", Required: true},
	{Name: "reg_no", Label: "RegNo", Required: true},
	{Name: "craft_type", Label: "CraftType", Required: true},
	{Name: "sobt", Label: "SOBT", Required: true},
	{Name: "sibt", Label: "SIBT", Required: true},
	{Name: "atot", Label: "ATOT", Required: true},
	{Name: "aldt", Label: "ALDT", Required: true},
	{Name: "actual_arr_airport", Label: "ActualArrAirport", Required: false},
}

func defaultConfig() *Config {
	return &Config{
		Orientation:        "arrival",
		OutputDir:          "out",
		ComparedFields:     []string{"reg_no", "craft_type", "sobt", "sibt"},
		AuditFields:        DefaultAuditFields,
		EmptyValueSuffixes: []string{"field value is empty", "字段值为空"},
		Threshold:          0.30,
		Workers:            4,
		ShutdownTimeout:    10 * time.Second,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Kafka: KafkaConfig{
			Topic: "flight-comparisons",
		},
		ObjectStore: ObjectStoreConfig{
			Prefix: "flight-recon",
		},
	}
}

// Load reads configuration from defaults, an optional YAML file and RECON_*
// environment variables, in increasing precedence. An empty path falls back
// to CONFIG_PATH, then reconcile.yaml when it exists.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = sharedcfg.EnvOrDefault("CONFIG_PATH", "reconcile.yaml")
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if err := splitBrokers(k, "kafka.brokers"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if _, set := os.LookupEnv("SHUTDOWN_TIMEOUT"); set {
		timeout, err := sharedcfg.ParseShutdownTimeout()
		if err != nil {
			return nil, err
		}
		cfg.ShutdownTimeout = timeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envTransform maps RECON_LOG_LEVEL to log.level and RECON_TARGET_AIRPORT to
// target_airport. Only the first underscore of a known section is a separator.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	for _, section := range []string{"log", "kafka", "object_store"} {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

// splitBrokers turns a comma-separated broker string from the environment
// into a slice.
func splitBrokers(k *koanf.Koanf, path string) error {
	s, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	if err := k.Set(path, sharedcfg.ParseBrokers(s)); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.ForeignAirlineRegex != "" {
		if _, err := regexp.Compile(c.ForeignAirlineRegex); err != nil {
			return fmt.Errorf("invalid foreign_airline_pattern: %w", err)
		}
	}
	for i, s := range c.Sources {
		if s.Schema == SchemaDelimitedJSON && s.PayloadColumn == "" {
			return fmt.Errorf("sources[%d]: payload_column is required for %s", i, SchemaDelimitedJSON)
		}
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return errors.New("kafka.topic is required when kafka.brokers is set")
	}
	if c.ObjectStore.Bucket != "" && !c.ObjectStore.Enabled() {
		return errors.New("object_store.bucket requires object_store.endpoint")
	}
	return nil
}

// Days returns the reporting days covered by the configuration: every day of
// Month when set, otherwise ReportingDate.
func (c *Config) Days() ([]time.Time, error) {
	if c.Month != "" {
		first, err := time.Parse("2006-01", c.Month)
		if err != nil {
			return nil, fmt.Errorf("parse month: %w", err)
		}
		var days []time.Time
		for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
			days = append(days, d)
		}
		return days, nil
	}
	if c.ReportingDate == "" {
		return nil, errors.New("reporting_date or month is required")
	}
	d, err := time.Parse("2006-01-02", c.ReportingDate)
	if err != nil {
		return nil, fmt.Errorf("parse reporting_date: %w", err)
	}
	return []time.Time{d}, nil
}

// ExpandPath substitutes {date} with the day as YYYYMMDD.
func ExpandPath(path string, day time.Time) string {
	return strings.ReplaceAll(path, "{date}", day.Format("20060102"))
}
