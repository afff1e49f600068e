// Package modeltranslation stores translatable model fields in one column per
// configured language and redirects reads and writes of the original field to
// the column of the active language.
//
// A Service wires the pieces together: configuration, the language resolver,
// the translation registry, startup discovery of translation units, and when
// a datastore is configured the schema sync, backfill and persistence of
// translated models.
package modeltranslation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/pitabwire/util"
	"gorm.io/gorm/schema"

	"github.com/pitabwire/modeltranslation/admin"
	"github.com/pitabwire/modeltranslation/backfill"
	"github.com/pitabwire/modeltranslation/config"
	"github.com/pitabwire/modeltranslation/datastore/pool"
	"github.com/pitabwire/modeltranslation/discovery"
	"github.com/pitabwire/modeltranslation/localization"
	"github.com/pitabwire/modeltranslation/model"
	"github.com/pitabwire/modeltranslation/registry"
	"github.com/pitabwire/modeltranslation/schemasync"
	"github.com/pitabwire/modeltranslation/store"
	"github.com/pitabwire/modeltranslation/telemetry"
	"github.com/pitabwire/modeltranslation/workerpool"
)

const tracerName = "github.com/pitabwire/modeltranslation"

var ErrNoDatastore = errors.New("no datastore configured")

type contextKey string

func (c contextKey) String() string {
	return "modeltranslation/" + string(c)
}

const ctxKeyService = contextKey("serviceKey")

// Service holds the translation setup of one process.
type Service struct {
	name   string
	cfg    *config.ConfigurationDefault
	logger *util.LogEntry

	logOpts       []util.Option
	schema        model.Schema
	codeUnits     *discovery.Catalog
	units         []string
	manifestDir   string
	labelsDir     string
	datastoreOpts []pool.Option
	useDatastore  bool
	workerOpts    []workerpool.Option
	telemetryOpts []telemetry.Option

	resolver   *localization.Resolver
	registry   *registry.Registry
	discoverer *discovery.Discoverer
	labels     localization.Manager
	telemetry  telemetry.Manager
	tracer     telemetry.Tracer
	workers    workerpool.WorkerPool
	dbPool     pool.Pool
	syncer     *schemasync.Syncer
	updater    *backfill.Updater
	repository store.Repository
}

// NewService builds a service from the environment configuration adjusted by opts. The
// returned context carries the service, its configuration and its logger.
func NewService(ctx context.Context, name string, opts ...Option) (context.Context, *Service, error) {
	s := &Service{
		name:      name,
		codeUnits: discovery.NewCatalog(),
	}

	cfg, err := config.FromEnv[config.ConfigurationDefault]()
	if err != nil {
		return ctx, nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	s.cfg = &cfg

	for _, opt := range opts {
		opt(ctx, s)
	}

	if err = s.setup(ctx); err != nil {
		s.Close(ctx)
		return ctx, nil, err
	}

	ctx = ToContext(ctx, s)
	ctx = config.ToContext(ctx, s.cfg)
	ctx = util.ContextWithLogger(ctx, s.logger)
	return ctx, s, nil
}

// ToContext pushes a service into ctx.
func ToContext(ctx context.Context, s *Service) context.Context {
	return context.WithValue(ctx, ctxKeyService, s)
}

// FromContext returns the service carried by ctx, nil when there is none.
func FromContext(ctx context.Context) *Service {
	s, ok := ctx.Value(ctxKeyService).(*Service)
	if !ok {
		return nil
	}
	return s
}

func (s *Service) setup(ctx context.Context) error {
	s.setupLogger(ctx)
	ctx = util.ContextWithLogger(ctx, s.logger)

	if s.telemetryOpts != nil {
		opts := append([]telemetry.Option{
			telemetry.WithServiceName(s.name),
			telemetry.WithServiceVersion(s.cfg.Version()),
			telemetry.WithServiceEnvironment(s.cfg.Environment()),
			telemetry.WithViews(tracerName),
		}, s.telemetryOpts...)

		s.telemetry = telemetry.NewManager(s.cfg, opts...)
		if err := s.telemetry.Init(ctx); err != nil {
			return fmt.Errorf("initialise telemetry: %w", err)
		}
		if handler := s.telemetry.LogHandler(); handler != nil {
			s.logOpts = append(s.logOpts, util.WithLogHandler(handler))
			s.setupLogger(ctx)
		}
	}
	s.tracer = telemetry.NewTracer(tracerName)

	resolver, err := localization.NewResolverFromConfig(s.cfg)
	if err != nil {
		return err
	}
	s.resolver = resolver

	if s.schema == nil {
		s.schema = model.NewCatalog()
	}

	var customTypes []schema.DataType
	for _, name := range s.cfg.CustomFieldTypes() {
		customTypes = append(customTypes, schema.DataType(name))
	}
	s.registry = registry.New(s.schema, s.resolver, registry.WithTranslatableTypes(customTypes...))

	sources := discovery.Sources{s.codeUnits}
	if dir := s.ManifestDir(); dir != "" {
		sources = append(sources, discovery.NewManifestSource(dir))
	}
	s.discoverer = discovery.NewDiscoverer(s.registry, sources,
		discovery.WithDebug(s.cfg.TranslationDebugEnabled()),
		discovery.WithEnabled(s.cfg.RegistrationsEnabled()))

	if dir := s.labelsFolder(); dir != "" {
		s.labels, err = localization.NewManager(dir, s.resolver.Default(), s.resolver.Languages()...)
		if err != nil {
			return err
		}
	}

	s.workers, err = workerpool.New(ctx, s.cfg,
		append([]workerpool.Option{workerpool.WithPoolLogger(s.logger.WithField("component", "workerpool"))},
			s.workerOpts...)...)
	if err != nil {
		return err
	}

	if s.useDatastore {
		if err = s.setupDatastore(ctx); err != nil {
			return err
		}
	}

	s.logger.WithField("languages", s.resolver.Languages()).
		WithField("default_language", s.resolver.Default()).
		Debug("NewService -- translation service ready")
	return nil
}

func (s *Service) setupLogger(ctx context.Context) {
	opts := slices.Clone(s.logOpts)

	logLevel, err := util.ParseLevel(s.cfg.LoggingLevel())
	if err == nil {
		opts = append(opts, util.WithLogLevel(logLevel))
	}
	opts = append(opts,
		util.WithLogTimeFormat(s.cfg.LoggingTimeFormat()),
		util.WithLogNoColor(!s.cfg.LoggingColored()))
	if s.cfg.LoggingShowStackTrace() {
		opts = append(opts, util.WithLogStackTrace())
	}

	s.logger = util.NewLogger(ctx, opts...).WithField("service", s.name)
}

func (s *Service) setupDatastore(ctx context.Context) error {
	dbPool := pool.NewPool(ctx)
	opts := append([]pool.Option{pool.WithConfig(s.cfg), pool.WithApplicationName(s.name)}, s.datastoreOpts...)
	if err := dbPool.AddConnection(ctx, opts...); err != nil {
		return fmt.Errorf("connect datastore: %w", err)
	}

	s.dbPool = dbPool
	s.syncer = schemasync.NewSyncer(s.registry, dbPool)
	s.updater = backfill.NewUpdater(s.registry, dbPool, s.workers)
	s.repository = store.NewRepository(dbPool, s.registry)
	return nil
}

func (s *Service) labelsFolder() string {
	if s.labelsDir != "" {
		return s.labelsDir
	}
	return s.cfg.LabelsDir()
}

func (s *Service) Name() string {
	return s.name
}

func (s *Service) Config() *config.ConfigurationDefault {
	return s.cfg
}

func (s *Service) Log(ctx context.Context) *util.LogEntry {
	return s.logger.WithContext(ctx)
}

func (s *Service) Resolver() *localization.Resolver {
	return s.resolver
}

func (s *Service) Schema() model.Schema {
	return s.schema
}

func (s *Service) Registry() *registry.Registry {
	return s.registry
}

func (s *Service) Discoverer() *discovery.Discoverer {
	return s.discoverer
}

// Labels is nil unless a labels directory is configured.
func (s *Service) Labels() localization.Manager {
	return s.labels
}

func (s *Service) WorkerPool() workerpool.WorkerPool {
	return s.workers
}

// Pool, Syncer, Updater and Repository are nil without a datastore.

func (s *Service) Pool() pool.Pool {
	return s.dbPool
}

func (s *Service) Syncer() *schemasync.Syncer {
	return s.syncer
}

func (s *Service) Updater() *backfill.Updater {
	return s.updater
}

func (s *Service) Repository() store.Repository {
	return s.repository
}

func (s *Service) ManifestDir() string {
	if s.manifestDir != "" {
		return s.manifestDir
	}
	return s.cfg.ManifestDir()
}

// UnitNames lists the units Discover applies: the configured ones, or else every known code
// unit and manifest in sorted order.
func (s *Service) UnitNames() ([]string, error) {
	if len(s.units) > 0 {
		return slices.Clone(s.units), nil
	}
	if units := s.cfg.Units(); len(units) > 0 {
		return slices.Clone(units), nil
	}

	names := s.codeUnits.Names()
	if dir := s.ManifestDir(); dir != "" {
		manifests, err := discovery.NewManifestSource(dir).Names()
		if err != nil {
			return nil, err
		}
		names = append(names, manifests...)
	}

	sort.Strings(names)
	return slices.Compact(names), nil
}

// Discover registers the translation units once per service.
func (s *Service) Discover(ctx context.Context) (results []discovery.Result, err error) {
	ctx, span := s.tracer.Start(ctx, "Discover")
	defer func() { s.tracer.End(ctx, span, err) }()

	names, err := s.UnitNames()
	if err != nil {
		return nil, err
	}
	return s.discoverer.Discover(ctx, names...)
}

// Admin returns the admin layout helper of a registered model.
func (s *Service) Admin(modelID string) (*admin.ModelAdmin, error) {
	var opts []admin.Option
	if s.labels != nil {
		opts = append(opts, admin.WithLabels(s.labels))
	}
	return admin.New(s.registry, modelID, opts...)
}

// InspectSchema reports the translation columns missing from the database.
func (s *Service) InspectSchema(ctx context.Context) (report *schemasync.Report, err error) {
	if s.syncer == nil {
		return nil, ErrNoDatastore
	}

	ctx, span := s.tracer.Start(ctx, "InspectSchema")
	defer func() { s.tracer.End(ctx, span, err) }()

	return s.syncer.Inspect(ctx)
}

// SyncSchema adds the missing translation columns, asking confirm before each model.
func (s *Service) SyncSchema(ctx context.Context, confirm schemasync.Confirmer) (report *schemasync.Report, err error) {
	if s.syncer == nil {
		return nil, ErrNoDatastore
	}

	ctx, span := s.tracer.Start(ctx, "SyncSchema")
	defer func() { s.tracer.End(ctx, span, err) }()

	return s.syncer.Sync(ctx, confirm)
}

// UpdateFields fills empty default-language columns from the original columns.
func (s *Service) UpdateFields(ctx context.Context, modelIDs ...string) (results []backfill.Result, err error) {
	if s.updater == nil {
		return nil, ErrNoDatastore
	}

	ctx, span := s.tracer.Start(ctx, "UpdateFields")
	defer func() { s.tracer.End(ctx, span, err) }()

	return s.updater.Update(ctx, modelIDs...)
}

// Close releases the worker pool, the datastore and the telemetry providers.
func (s *Service) Close(ctx context.Context) {
	if s.workers != nil {
		s.workers.Shutdown()
	}
	if s.dbPool != nil {
		s.dbPool.Close(ctx)
	}
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil && s.logger != nil {
			s.logger.WithError(err).Warn("Close -- telemetry shutdown failed")
		}
	}
}
