package config

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/pitabwire/modeltranslation/fieldname"
)

type contextKey string

func (c contextKey) String() string {
	return "modeltranslation/config/" + string(c)
}

const (
	ctxKeyConfiguration = contextKey("configurationKey")

	DefaultSlowQueryThreshold = 200 * time.Millisecond
)

// ErrConfiguration is returned when the supplied settings can not be used to start translation.
var ErrConfiguration = errors.New("improperly configured")

// ToContext adds service configuration to the current supplied context.
func ToContext(ctx context.Context, config any) context.Context {
	return context.WithValue(ctx, ctxKeyConfiguration, config)
}

// FromContext extracts service configuration from the supplied context if any exist.
func FromContext[T any](ctx context.Context) T {
	if cfg, ok := ctx.Value(ctxKeyConfiguration).(T); ok {
		return cfg
	}
	var zero T
	return zero
}

// FromEnv convenience method to process configs.
func FromEnv[T any]() (T, error) {
	return env.ParseAs[T]()
}

// FillEnv convenience method to fill a config object with environment data.
func FillEnv(v any) error {
	return env.Parse(v)
}

type ConfigurationDefault struct {
	LogLevel          string `envDefault:"info"                      env:"LOG_LEVEL"            yaml:"log_level"`
	LogTimeFormat     string `envDefault:"2006-01-02T15:04:05Z07:00" env:"LOG_TIME_FORMAT"      yaml:"log_time_format"`
	LogColored        bool   `envDefault:"true"                      env:"LOG_COLORED"          yaml:"log_colored"`
	LogShowStackTrace bool   `envDefault:"false"                     env:"LOG_SHOW_STACK_TRACE" yaml:"log_show_stack_trace"`

	ServiceName        string `envDefault:"" env:"SERVICE_NAME"        yaml:"service_name"`
	ServiceEnvironment string `envDefault:"" env:"SERVICE_ENVIRONMENT" yaml:"service_environment"`
	ServiceVersion     string `envDefault:"" env:"SERVICE_VERSION"     yaml:"service_version"`

	OpenTelemetryDisable    bool    `envDefault:"false" env:"OPENTELEMETRY_DISABLE"        yaml:"opentelemetry_disable"`
	OpenTelemetryTraceRatio float64 `envDefault:"0.1"   env:"OPENTELEMETRY_TRACE_ID_RATIO" yaml:"opentelemetry_trace_id_ratio"`

	Languages       []string `envDefault:"en" env:"LANGUAGES"                         yaml:"languages"        envSeparator:","`
	LanguageDefault string   `envDefault:""   env:"MODELTRANSLATION_DEFAULT_LANGUAGE" yaml:"default_language"`

	TranslationDebug               bool     `envDefault:"false" env:"MODELTRANSLATION_DEBUG"                yaml:"translation_debug"`
	TranslationEnableRegistrations bool     `envDefault:"true"  env:"MODELTRANSLATION_ENABLE_REGISTRATIONS" yaml:"translation_enable_registrations"`
	TranslationUnits               []string `                   env:"MODELTRANSLATION_UNITS"                yaml:"translation_units"                envSeparator:","`
	TranslationManifestDir         string   `envDefault:"."     env:"MODELTRANSLATION_MANIFEST_DIR"         yaml:"translation_manifest_dir"`
	TranslationCustomFields        []string `                   env:"MODELTRANSLATION_CUSTOM_FIELDS"        yaml:"translation_custom_fields"        envSeparator:","`
	TranslationLabelsDir           string   `envDefault:""      env:"MODELTRANSLATION_LABELS_DIR"           yaml:"translation_labels_dir"`

	// Worker pool settings
	WorkerPoolCPUFactorForWorkerCount int    `envDefault:"2"  env:"WORKER_POOL_CPU_FACTOR_FOR_WORKER_COUNT" yaml:"worker_pool_cpu_factor_for_worker_count"`
	WorkerPoolCapacity                int    `envDefault:"16" env:"WORKER_POOL_CAPACITY"                    yaml:"worker_pool_capacity"`
	WorkerPoolCount                   int    `envDefault:"1"  env:"WORKER_POOL_COUNT"                       yaml:"worker_pool_count"`
	WorkerPoolExpiryDuration          string `envDefault:"1s" env:"WORKER_POOL_EXPIRY_DURATION"             yaml:"worker_pool_expiry_duration"`

	DatabasePrimaryURL             []string `env:"DATABASE_URL"             yaml:"database_url"`
	DatabaseReplicaURL             []string `env:"REPLICA_DATABASE_URL"     yaml:"replica_database_url"`
	DatabaseSkipDefaultTransaction bool     `env:"SKIP_DEFAULT_TRANSACTION" yaml:"skip_default_transaction" envDefault:"true"`
	DatabasePreferSimpleProtocol   bool     `env:"PREFER_SIMPLE_PROTOCOL"   yaml:"prefer_simple_protocol"   envDefault:"true"`

	DatabaseMaxIdleConnections           int `envDefault:"2"   env:"DATABASE_MAX_IDLE_CONNECTIONS"                yaml:"database_max_idle_connections"`
	DatabaseMaxOpenConnections           int `envDefault:"5"   env:"DATABASE_MAX_OPEN_CONNECTIONS"                yaml:"database_max_open_connections"`
	DatabaseMaxConnectionLifeTimeSeconds int `envDefault:"300" env:"DATABASE_MAX_CONNECTION_LIFE_TIME_IN_SECONDS" yaml:"database_max_connection_life_time_seconds"`

	DatabaseTraceQueries          bool   `envDefault:"false" env:"DATABASE_LOG_QUERIES"          yaml:"database_log_queries"`
	DatabaseSlowQueryLogThreshold string `envDefault:"200ms" env:"DATABASE_SLOW_QUERY_THRESHOLD" yaml:"database_slow_query_threshold"`
}

type ConfigurationService interface {
	Name() string
	Environment() string
	Version() string
}

var _ ConfigurationService = new(ConfigurationDefault)

func (c *ConfigurationDefault) Name() string {
	return c.ServiceName
}
func (c *ConfigurationDefault) Environment() string {
	return c.ServiceEnvironment
}
func (c *ConfigurationDefault) Version() string {
	return c.ServiceVersion
}

type ConfigurationTelemetry interface {
	DisableOpenTelemetry() bool
	SamplingRatio() float64
}

var _ ConfigurationTelemetry = new(ConfigurationDefault)

func (c *ConfigurationDefault) DisableOpenTelemetry() bool {
	return c.OpenTelemetryDisable
}

func (c *ConfigurationDefault) SamplingRatio() float64 {
	return c.OpenTelemetryTraceRatio
}

type ConfigurationLogLevel interface {
	LoggingLevel() string
	LoggingTimeFormat() string
	LoggingShowStackTrace() bool
	LoggingColored() bool
	LoggingLevelIsDebug() bool
}

var _ ConfigurationLogLevel = new(ConfigurationDefault)

func (c *ConfigurationDefault) LoggingLevel() string {
	return c.LogLevel
}

func (c *ConfigurationDefault) LoggingTimeFormat() string {
	return c.LogTimeFormat
}

func (c *ConfigurationDefault) LoggingColored() bool {
	return c.LogColored
}

func (c *ConfigurationDefault) LoggingShowStackTrace() bool {
	return c.LogShowStackTrace
}

func (c *ConfigurationDefault) LoggingLevelIsDebug() bool {
	return c.LoggingLevel() == "debug" || c.LoggingLevel() == "trace"
}

// ConfigurationLanguages describes the languages every translatable field is stored in.
type ConfigurationLanguages interface {
	// AvailableLanguages returns the configured language codes in declaration order.
	AvailableLanguages() []string
	// DefaultLanguage returns the language kept in sync with the original field,
	// the first available language when none is configured explicitly.
	DefaultLanguage() string
	ValidateLanguages() error
}

var _ ConfigurationLanguages = new(ConfigurationDefault)

func (c *ConfigurationDefault) AvailableLanguages() []string {
	var languages []string
	for _, lang := range c.Languages {
		lang = strings.TrimSpace(lang)
		if lang == "" || slices.Contains(languages, lang) {
			continue
		}
		languages = append(languages, lang)
	}
	return languages
}

func (c *ConfigurationDefault) DefaultLanguage() string {
	if lang := strings.TrimSpace(c.LanguageDefault); lang != "" {
		return lang
	}

	languages := c.AvailableLanguages()
	if len(languages) == 0 {
		return ""
	}
	return languages[0]
}

func (c *ConfigurationDefault) ValidateLanguages() error {
	return ValidateLanguages(c.AvailableLanguages(), c.DefaultLanguage())
}

// ValidateLanguages ensures the default language is one of the available languages and that no
// two languages share a field name suffix or differ only in case or separator.
func ValidateLanguages(available []string, defaultLanguage string) error {
	if len(available) == 0 {
		return fmt.Errorf("%w: no languages configured", ErrConfiguration)
	}

	seen := make(map[string]string, len(available))
	for _, lang := range available {
		key := strings.ToLower(fieldname.Normalize(lang))
		if other, ok := seen[key]; ok {
			return fmt.Errorf("%w: languages %q and %q map to the same translation field",
				ErrConfiguration, other, lang)
		}
		seen[key] = lang
	}

	if !slices.Contains(available, defaultLanguage) {
		return fmt.Errorf("%w: default language %q not in available languages %v",
			ErrConfiguration, defaultLanguage, available)
	}
	return nil
}

type ConfigurationTranslation interface {
	TranslationDebugEnabled() bool
	RegistrationsEnabled() bool
	Units() []string
	ManifestDir() string
	CustomFieldTypes() []string
	LabelsDir() string
}

var _ ConfigurationTranslation = new(ConfigurationDefault)

func (c *ConfigurationDefault) TranslationDebugEnabled() bool {
	return c.TranslationDebug || c.LoggingLevelIsDebug()
}

func (c *ConfigurationDefault) RegistrationsEnabled() bool {
	return c.TranslationEnableRegistrations
}

func (c *ConfigurationDefault) Units() []string {
	return c.TranslationUnits
}

func (c *ConfigurationDefault) ManifestDir() string {
	return c.TranslationManifestDir
}

func (c *ConfigurationDefault) CustomFieldTypes() []string {
	return c.TranslationCustomFields
}

func (c *ConfigurationDefault) LabelsDir() string {
	return c.TranslationLabelsDir
}

type ConfigurationWorkerPool interface {
	GetCPUFactor() int
	GetCapacity() int
	GetCount() int
	GetExpiryDuration() time.Duration
}

var _ ConfigurationWorkerPool = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetCPUFactor() int {
	return c.WorkerPoolCPUFactorForWorkerCount
}

func (c *ConfigurationDefault) GetCapacity() int {
	return c.WorkerPoolCapacity
}

func (c *ConfigurationDefault) GetCount() int {
	return c.WorkerPoolCount
}

func (c *ConfigurationDefault) GetExpiryDuration() time.Duration {
	if c.WorkerPoolExpiryDuration != "" {
		duration, err := time.ParseDuration(c.WorkerPoolExpiryDuration)
		if err == nil {
			return duration
		}
	}

	return time.Second
}

type ConfigurationDatabase interface {
	GetDatabasePrimaryHostURL() []string
	GetDatabaseReplicaHostURL() []string
	PreferSimpleProtocol() bool
	SkipDefaultTransaction() bool
	GetMaxIdleConnections() int
	GetMaxOpenConnections() int
	GetMaxConnectionLifeTimeInSeconds() time.Duration
}

type ConfigurationDatabaseTracing interface {
	CanDatabaseTraceQueries() bool
	GetDatabaseSlowQueryLogThreshold() time.Duration
}

var _ ConfigurationDatabase = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetDatabasePrimaryHostURL() []string {
	return c.DatabasePrimaryURL
}

func (c *ConfigurationDefault) GetDatabaseReplicaHostURL() []string {
	return c.DatabaseReplicaURL
}

func (c *ConfigurationDefault) PreferSimpleProtocol() bool {
	return c.DatabasePreferSimpleProtocol
}

func (c *ConfigurationDefault) SkipDefaultTransaction() bool {
	return c.DatabaseSkipDefaultTransaction
}

func (c *ConfigurationDefault) GetMaxIdleConnections() int {
	return c.DatabaseMaxIdleConnections
}

func (c *ConfigurationDefault) GetMaxOpenConnections() int {
	return c.DatabaseMaxOpenConnections
}

func (c *ConfigurationDefault) GetMaxConnectionLifeTimeInSeconds() time.Duration {
	return time.Duration(c.DatabaseMaxConnectionLifeTimeSeconds) * time.Second
}

var _ ConfigurationDatabaseTracing = new(ConfigurationDefault)

func (c *ConfigurationDefault) CanDatabaseTraceQueries() bool {
	return c.DatabaseTraceQueries
}

func (c *ConfigurationDefault) GetDatabaseSlowQueryLogThreshold() time.Duration {
	threshold, err := time.ParseDuration(c.DatabaseSlowQueryLogThreshold)
	if err != nil {
		return DefaultSlowQueryThreshold
	}
	return threshold
}
