package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	syncengine "github.com/npdadmin/syncengine"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver routes messages for the given key through a go-job queue
// registry, so engine commands can be executed by queue workers.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterQuery(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// RegisterFacade registers and subscribes every engine command and query
// from the facade. It returns the subscriptions in registration order so
// hosts can unsubscribe on shutdown.
func RegisterFacade(adapter *RegistryAdapter, facade *syncengine.Facade) ([]commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if facade == nil {
		return nil, fmt.Errorf("gocommand: facade is required")
	}

	commands := facade.Commands()
	queries := facade.Queries()
	subscriptions := make([]commanddispatcher.Subscription, 0, 18)

	unsubscribeAll := func() {
		for _, subscription := range subscriptions {
			if subscription != nil {
				subscription.Unsubscribe()
			}
		}
	}

	register := func(subscription commanddispatcher.Subscription, err error) error {
		if err != nil {
			unsubscribeAll()
			return err
		}
		subscriptions = append(subscriptions, subscription)
		return nil
	}

	if err := register(RegisterAndSubscribe(adapter, commands.RecordConflict)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, commands.ResolveConflict)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, commands.BulkResolve)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, commands.EnqueueSync)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, commands.RetrySync)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, commands.EnqueueDocument)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, commands.RetryDocument)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, commands.CancelDocument)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, commands.ReapStale)); err != nil {
		return nil, err
	}

	if err := register(RegisterAndSubscribeQuery(adapter, queries.GetConflict)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribeQuery(adapter, queries.ListConflicts)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribeQuery(adapter, queries.ConflictStats)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribeQuery(adapter, queries.GetSyncItem)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribeQuery(adapter, queries.ListSyncQueue)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribeQuery(adapter, queries.SyncQueueStats)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribeQuery(adapter, queries.GetDocumentItem)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribeQuery(adapter, queries.ListDocumentQueue)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribeQuery(adapter, queries.DocumentQueueStats)); err != nil {
		return nil, err
	}

	return subscriptions, nil
}
