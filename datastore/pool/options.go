package pool

import (
	"time"

	"github.com/pitabwire/modeltranslation/config"
)

// Option configures database connection settings.
type Option func(*Options)

// Connection is one database the pool connects to.
type Connection struct {
	DSN      string
	ReadOnly bool
}

// Options holds Datastore connection configuration.
type Options struct {
	Connections []Connection

	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration

	// ApplicationName is reported to the server as application_name.
	ApplicationName string

	PreferSimpleProtocol   bool
	SkipDefaultTransaction bool

	TraceConfig config.ConfigurationDatabaseTracing
}

// WithConnection adds a database, read only ones serve reads only.
func WithConnection(dsn string, readOnly bool) Option {
	return func(o *Options) {
		o.Connections = append(o.Connections, Connection{DSN: dsn, ReadOnly: readOnly})
	}
}

// WithApplicationName names the connections in the server's activity views.
func WithApplicationName(name string) Option {
	return func(o *Options) {
		o.ApplicationName = name
	}
}

// WithMaxOpen returns an Option to configure the database connection max open connections.
func WithMaxOpen(maxOpen int) Option {
	return func(o *Options) {
		o.MaxOpen = maxOpen
	}
}

// WithMaxIdle returns an Option to configure the database connection max idle connections.
func WithMaxIdle(maxIdle int) Option {
	return func(o *Options) {
		o.MaxIdle = maxIdle
	}
}

// WithMaxLifetime returns an Option to configure the database connection max lifetime.
func WithMaxLifetime(maxLifetime time.Duration) Option {
	return func(o *Options) {
		o.MaxLifetime = maxLifetime
	}
}

// WithPreferSimpleProtocol returns an Option to configure the database connection prefer simple protocol.
func WithPreferSimpleProtocol(preferSimpleProtocol bool) Option {
	return func(o *Options) {
		o.PreferSimpleProtocol = preferSimpleProtocol
	}
}

// WithSkipDefaultTransaction returns an Option to configure the database connection skip default transaction.
func WithSkipDefaultTransaction(skipDefaultTransaction bool) Option {
	return func(o *Options) {
		o.SkipDefaultTransaction = skipDefaultTransaction
	}
}

// WithTraceConfig returns an Option to configure the database connection trace config.
func WithTraceConfig(traceConfig config.ConfigurationDatabaseTracing) Option {
	return func(o *Options) {
		o.TraceConfig = traceConfig
	}
}

// WithConfig applies the pool sizing and tracing settings of cfg.
func WithConfig(cfg interface {
	config.ConfigurationDatabase
	config.ConfigurationDatabaseTracing
}) Option {
	return func(o *Options) {
		for _, dsn := range cfg.GetDatabasePrimaryHostURL() {
			o.Connections = append(o.Connections, Connection{DSN: dsn})
		}
		for _, dsn := range cfg.GetDatabaseReplicaHostURL() {
			o.Connections = append(o.Connections, Connection{DSN: dsn, ReadOnly: true})
		}

		o.MaxOpen = cfg.GetMaxOpenConnections()
		o.MaxIdle = cfg.GetMaxIdleConnections()
		o.MaxLifetime = cfg.GetMaxConnectionLifeTimeInSeconds()
		o.PreferSimpleProtocol = cfg.PreferSimpleProtocol()
		o.SkipDefaultTransaction = cfg.SkipDefaultTransaction()
		o.TraceConfig = cfg
	}
}
