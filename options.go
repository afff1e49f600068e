package modeltranslation

import (
	"context"

	"github.com/pitabwire/util"

	"github.com/pitabwire/modeltranslation/config"
	"github.com/pitabwire/modeltranslation/datastore/pool"
	"github.com/pitabwire/modeltranslation/discovery"
	"github.com/pitabwire/modeltranslation/model"
	"github.com/pitabwire/modeltranslation/telemetry"
	"github.com/pitabwire/modeltranslation/workerpool"
)

// Option configures a Service before its components are built.
type Option func(ctx context.Context, s *Service)

// WithConfig replaces the configuration read from the environment.
func WithConfig(cfg *config.ConfigurationDefault) Option {
	return func(_ context.Context, s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger adds logger options on top of the configured log level and format.
func WithLogger(opts ...util.Option) Option {
	return func(_ context.Context, s *Service) {
		s.logOpts = append(s.logOpts, opts...)
	}
}

// WithSchema sets the model schema translated fields are added to, a model.Catalog by default.
func WithSchema(modelSchema model.Schema) Option {
	return func(_ context.Context, s *Service) {
		s.schema = modelSchema
	}
}

// WithUnit adds a translation unit defined in code.
func WithUnit(name string, unit discovery.Unit) Option {
	return func(_ context.Context, s *Service) {
		s.codeUnits.Add(name, unit)
	}
}

// WithUnits sets the ordered unit names Discover applies.
func WithUnits(names ...string) Option {
	return func(_ context.Context, s *Service) {
		s.units = append(s.units, names...)
	}
}

// WithManifestDir sets the directory holding <unit>/translation.yaml manifests.
func WithManifestDir(dir string) Option {
	return func(_ context.Context, s *Service) {
		s.manifestDir = dir
	}
}

// WithDatastore connects the configured databases, plus any given in opts.
func WithDatastore(opts ...pool.Option) Option {
	return func(_ context.Context, s *Service) {
		s.useDatastore = true
		s.datastoreOpts = append(s.datastoreOpts, opts...)
	}
}

// WithTranslations loads the messages.<lang>.toml label files found in folder.
func WithTranslations(folder string) Option {
	return func(_ context.Context, s *Service) {
		s.labelsDir = folder
	}
}

// WithWorkerPool adjusts the worker pool running backfill jobs.
func WithWorkerPool(opts ...workerpool.Option) Option {
	return func(_ context.Context, s *Service) {
		s.workerOpts = append(s.workerOpts, opts...)
	}
}

// WithTelemetry installs OpenTelemetry providers for the service.
func WithTelemetry(opts ...telemetry.Option) Option {
	return func(_ context.Context, s *Service) {
		s.telemetryOpts = append([]telemetry.Option{}, opts...)
	}
}
