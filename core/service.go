package core

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

// Service coordinates the conflict ledger, the sync queue, and the document
// queue. Stores and the audit bus are collaborators; the service owns
// validation, retry scheduling, and audit publication.
type Service struct {
	config             Config
	logger             Logger
	loggerProvider     LoggerProvider
	metricsRecorder    MetricsRecorder
	errorFactory       ErrorFactory
	errorMapper        ErrorMapper
	configProvider     ConfigProvider
	optionsResolver    OptionsResolver
	persistenceClient  any
	repositoryFactory  RepositoryStoreFactory
	conflictStore      ConflictStore
	syncQueueStore     SyncQueueStore
	documentQueueStore DocumentQueueStore
	auditBus           AuditEventBus
	classifier         RateLimitClassifier
	scheduler          RetryScheduler
	idGenerator        func() string
	now                func() time.Time
}

type ServiceDependencies struct {
	Logger             Logger
	LoggerProvider     LoggerProvider
	MetricsRecorder    MetricsRecorder
	ErrorFactory       ErrorFactory
	ErrorMapper        ErrorMapper
	ConfigProvider     ConfigProvider
	OptionsResolver    OptionsResolver
	PersistenceClient  any
	RepositoryFactory  RepositoryStoreFactory
	ConflictStore      ConflictStore
	SyncQueueStore     SyncQueueStore
	DocumentQueueStore DocumentQueueStore
	AuditOutboxStore   AuditOutboxStore
	AuditEventBus      AuditEventBus
	Classifier         RateLimitClassifier
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("syncengine", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("syncengine"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.repositoryFactory != nil &&
		(builder.conflictStore == nil || builder.syncQueueStore == nil ||
			builder.documentQueueStore == nil) {
		storeProvider, buildErr := builder.repositoryFactory.BuildStores(builder.persistenceClient)
		if buildErr != nil {
			return nil, mapBuildError(builder.errorMapper, buildErr)
		}
		if storeProvider != nil {
			if builder.conflictStore == nil {
				builder.conflictStore = storeProvider.ConflictStore()
			}
			if builder.syncQueueStore == nil {
				builder.syncQueueStore = storeProvider.SyncQueueStore()
			}
			if builder.documentQueueStore == nil {
				builder.documentQueueStore = storeProvider.DocumentQueueStore()
			}
			if outbox := storeProvider.AuditOutboxStore(); outbox != nil && builder.auditBus == nil {
				builder.auditBus = NewOutboxAuditBus(outbox)
			}
		}
	}

	scheduler := finalConfig.Scheduler()
	if builder.scheduler != nil {
		scheduler = *builder.scheduler
	}

	idGenerator := builder.idGenerator
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	clock := builder.clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	service := &Service{
		config:             finalConfig,
		logger:             logger,
		loggerProvider:     provider,
		metricsRecorder:    builder.metricsRecorder,
		errorFactory:       builder.errorFactory,
		errorMapper:        builder.errorMapper,
		configProvider:     builder.configProvider,
		optionsResolver:    builder.optionsResolver,
		persistenceClient:  builder.persistenceClient,
		repositoryFactory:  builder.repositoryFactory,
		conflictStore:      builder.conflictStore,
		syncQueueStore:     builder.syncQueueStore,
		documentQueueStore: builder.documentQueueStore,
		auditBus:           builder.auditBus,
		classifier:         builder.classifier,
		scheduler:          scheduler,
		idGenerator:        idGenerator,
		now:                clock,
	}
	return service, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:             s.logger,
		LoggerProvider:     s.loggerProvider,
		MetricsRecorder:    s.metricsRecorder,
		ErrorFactory:       s.errorFactory,
		ErrorMapper:        s.errorMapper,
		ConfigProvider:     s.configProvider,
		OptionsResolver:    s.optionsResolver,
		PersistenceClient:  s.persistenceClient,
		RepositoryFactory:  s.repositoryFactory,
		ConflictStore:      s.conflictStore,
		SyncQueueStore:     s.syncQueueStore,
		DocumentQueueStore: s.documentQueueStore,
		AuditEventBus:      s.auditBus,
		Classifier:         s.classifier,
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func copyAnyMap(source map[string]any) map[string]any {
	if len(source) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(source))
	for key, value := range source {
		copied[key] = value
	}
	return copied
}

func mergeMetadata(base map[string]any, extra map[string]any) map[string]any {
	merged := copyAnyMap(base)
	for key, value := range extra {
		merged[key] = value
	}
	return merged
}
