package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/npdadmin/syncengine/core"
)

// DocumentService is the slice of the engine the document worker drives.
// *core.Service satisfies it.
type DocumentService interface {
	ClaimNextDocument(ctx context.Context) (core.DocumentQueueItem, bool, error)
	CompleteDocument(ctx context.Context, id string) (core.DocumentQueueItem, error)
	FailDocument(ctx context.Context, id string, cause error) (core.DocumentQueueItem, error)
}

// DocumentWorker polls the document queue and hands claimed items to the
// DocumentProcessor.
type DocumentWorker struct {
	service   DocumentService
	processor DocumentProcessor
	logger    core.Logger
	config    Config
}

func NewDocumentWorker(service DocumentService, processor DocumentProcessor, config Config, logger core.Logger) (*DocumentWorker, error) {
	if service == nil {
		return nil, fmt.Errorf("worker: document service is required")
	}
	if processor == nil {
		return nil, fmt.Errorf("worker: document processor is required")
	}
	return &DocumentWorker{
		service:   service,
		processor: processor,
		logger:    logger,
		config:    config,
	}, nil
}

func (w *DocumentWorker) Run(ctx context.Context) error {
	if w == nil {
		return fmt.Errorf("worker: document worker is not configured")
	}

	var wg sync.WaitGroup
	for i := 0; i < w.config.concurrency(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (w *DocumentWorker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := w.ProcessOne(ctx)
		if err != nil {
			w.logError(ctx, "document worker iteration failed", err)
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.config.pollInterval()):
		}
	}
}

// ProcessOne claims and handles at most one item. It reports false when
// nothing was claimable.
func (w *DocumentWorker) ProcessOne(ctx context.Context) (bool, error) {
	if w == nil || w.service == nil {
		return false, fmt.Errorf("worker: document worker is not configured")
	}

	item, claimed, err := w.service.ClaimNextDocument(ctx)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	if processErr := w.processor.Process(ctx, item); processErr != nil {
		if _, err := w.service.FailDocument(ctx, item.ID, processErr); err != nil {
			return true, err
		}
		return true, nil
	}

	if _, err := w.service.CompleteDocument(ctx, item.ID); err != nil {
		return true, err
	}
	return true, nil
}

func (w *DocumentWorker) logError(ctx context.Context, message string, err error) {
	if w == nil || w.logger == nil {
		return
	}
	w.logger.WithContext(ctx).Error(message, "error", err.Error())
}
