package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/npdadmin/syncengine/core"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	conflictStore       *ConflictStore
	syncQueueStore      *SyncQueueStore
	documentQueueStore  *DocumentQueueStore
	auditOutboxStore    *AuditOutboxStore
	rateLimitStateStore *RateLimitStateStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.conflictStore != nil && f.syncQueueStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) ConflictStore() core.ConflictStore {
	if f == nil {
		return nil
	}
	return f.conflictStore
}

func (f *RepositoryFactory) SyncQueueStore() core.SyncQueueStore {
	if f == nil {
		return nil
	}
	return f.syncQueueStore
}

func (f *RepositoryFactory) DocumentQueueStore() core.DocumentQueueStore {
	if f == nil {
		return nil
	}
	return f.documentQueueStore
}

func (f *RepositoryFactory) AuditOutboxStore() core.AuditOutboxStore {
	if f == nil {
		return nil
	}
	return f.auditOutboxStore
}

func (f *RepositoryFactory) RateLimitStateStore() *RateLimitStateStore {
	if f == nil {
		return nil
	}
	return f.rateLimitStateStore
}

func (f *RepositoryFactory) initStores() error {
	conflictStore, err := NewConflictStore(f.db)
	if err != nil {
		return err
	}
	f.conflictStore = conflictStore

	syncQueueStore, err := NewSyncQueueStore(f.db)
	if err != nil {
		return err
	}
	f.syncQueueStore = syncQueueStore

	documentQueueStore, err := NewDocumentQueueStore(f.db)
	if err != nil {
		return err
	}
	f.documentQueueStore = documentQueueStore

	auditOutboxStore, err := NewAuditOutboxStore(f.db)
	if err != nil {
		return err
	}
	f.auditOutboxStore = auditOutboxStore

	rateLimitStateStore, err := NewRateLimitStateStore(f.db)
	if err != nil {
		return err
	}
	f.rateLimitStateStore = rateLimitStateStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
