package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type syncConflictRecord struct {
	bun.BaseModel `bun:"table:sync_conflicts,alias:sc"`

	ID             string         `bun:"id,pk"`
	EntityType     string         `bun:"entity_type,notnull"`
	EntityID       string         `bun:"entity_id,notnull"`
	InternalData   map[string]any `bun:"internal_data,type:jsonb,notnull"`
	ExternalData   map[string]any `bun:"external_data,type:jsonb,notnull"`
	ConflictFields []string       `bun:"conflict_fields,type:jsonb,notnull"`
	DetectedAt     time.Time      `bun:"detected_at,notnull"`
	ResolvedAt     *time.Time     `bun:"resolved_at,nullzero"`
	ResolutionType string         `bun:"resolution_type"`
	ResolvedBy     string         `bun:"resolved_by"`
	ResolvedData   map[string]any `bun:"resolved_data,type:jsonb"`
	Metadata       map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type syncQueueRecord struct {
	bun.BaseModel `bun:"table:sync_queue_items,alias:sq"`

	ID           string         `bun:"id,pk"`
	EntityType   string         `bun:"entity_type,notnull"`
	EntityID     string         `bun:"entity_id,notnull"`
	Direction    string         `bun:"direction,notnull"`
	Operation    string         `bun:"operation,notnull"`
	Status       string         `bun:"status,notnull"`
	Attempts     int            `bun:"attempts,notnull"`
	MaxAttempts  int            `bun:"max_attempts,notnull"`
	NextRetryAt  *time.Time     `bun:"next_retry_at,nullzero"`
	ErrorMessage string         `bun:"error_message"`
	ConflictID   *string        `bun:"conflict_id"`
	Metadata     map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt    time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type documentQueueRecord struct {
	bun.BaseModel `bun:"table:document_queue_items,alias:dq"`

	ID           string         `bun:"id,pk"`
	DocumentID   string         `bun:"document_id,notnull"`
	Operation    string         `bun:"operation,notnull"`
	Status       string         `bun:"status,notnull"`
	Attempts     int            `bun:"attempts,notnull"`
	MaxAttempts  int            `bun:"max_attempts,notnull"`
	NextRetryAt  *time.Time     `bun:"next_retry_at,nullzero"`
	ErrorMessage string         `bun:"error_message"`
	Metadata     map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt    time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type auditOutboxRecord struct {
	bun.BaseModel `bun:"table:sync_audit_outbox,alias:sao"`

	ID         string         `bun:"id,pk"`
	EventID    string         `bun:"event_id,notnull"`
	EventName  string         `bun:"event_name,notnull"`
	EntityType string         `bun:"entity_type"`
	EntityID   string         `bun:"entity_id"`
	Source     string         `bun:"source"`
	Payload    map[string]any `bun:"payload,type:jsonb,notnull"`
	Metadata   map[string]any `bun:"metadata,type:jsonb,notnull"`
	Status     string         `bun:"status,notnull"`
	Attempts   int            `bun:"attempts,notnull"`
	NextAttempt *time.Time    `bun:"next_attempt_at,nullzero"`
	LastError  string         `bun:"last_error,notnull"`
	OccurredAt time.Time      `bun:"occurred_at,notnull"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type rateLimitStateRecord struct {
	bun.BaseModel `bun:"table:sync_rate_limit_states,alias:rls"`

	ID             string         `bun:"id,pk"`
	ProviderID     string         `bun:"provider_id,notnull"`
	BucketKey      string         `bun:"bucket_key,notnull"`
	Remaining      int            `bun:"remaining,notnull"`
	Limit          int            `bun:"limit_value,notnull"`
	ResetAt        *time.Time     `bun:"reset_at,nullzero"`
	ThrottledUntil *time.Time     `bun:"throttled_until,nullzero"`
	RetryAfterMS   *int64         `bun:"retry_after_ms"`
	Metadata       map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
