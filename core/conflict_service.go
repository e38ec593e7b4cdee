package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// RecordConflictResult reports whether a ledger row was created. Skipped is
// true when the snapshots turned out identical and no conflict exists.
type RecordConflictResult struct {
	Conflict SyncConflict
	Skipped  bool
}

// RecordConflict appends a detected divergence to the ledger. When the input
// carries no precomputed field list the service diffs the snapshots itself,
// and skips the record entirely if nothing differs.
func (s *Service) RecordConflict(ctx context.Context, input RecordConflictInput) (result RecordConflictResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"entity_type": string(input.EntityType),
		"entity_id":   input.EntityID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "record_conflict", err, fields)
	}()

	if s == nil || s.conflictStore == nil {
		err = s.mapError(fmt.Errorf("core: conflict store is required"))
		return RecordConflictResult{}, err
	}
	if !input.EntityType.IsValid() {
		err = s.mapError(fmt.Errorf("%w: %q", ErrInvalidEntityType, input.EntityType))
		return RecordConflictResult{}, err
	}
	input.EntityID = strings.TrimSpace(input.EntityID)
	if input.EntityID == "" {
		err = s.mapError(fmt.Errorf("core: entity id is required"))
		return RecordConflictResult{}, err
	}

	conflictFields := append([]string(nil), input.ConflictFields...)
	if len(conflictFields) == 0 {
		conflictFields = DiffFields(input.InternalData, input.ExternalData)
	}
	if len(conflictFields) == 0 {
		result = RecordConflictResult{Skipped: true}
		return result, nil
	}
	sort.Strings(conflictFields)

	now := s.now()
	conflict := SyncConflict{
		ID:             s.idGenerator(),
		EntityType:     input.EntityType,
		EntityID:       input.EntityID,
		InternalData:   RedactSensitiveMap(input.InternalData),
		ExternalData:   RedactSensitiveMap(input.ExternalData),
		ConflictFields: conflictFields,
		DetectedAt:     now,
		Metadata:       RedactSensitiveMap(input.Metadata),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err = conflict.Validate(); err != nil {
		err = s.mapError(err)
		return RecordConflictResult{}, err
	}

	saved, createErr := s.conflictStore.Create(ctx, conflict)
	if createErr != nil {
		err = s.mapError(createErr)
		return RecordConflictResult{}, err
	}
	fields["conflict_id"] = saved.ID

	if err = s.publishConflictAudit(ctx, saved, "sync.conflict.recorded", map[string]any{
		"conflict_fields": append([]string(nil), saved.ConflictFields...),
	}); err != nil {
		err = s.mapError(err)
		return RecordConflictResult{}, err
	}
	result = RecordConflictResult{Conflict: saved}
	return result, nil
}

func (s *Service) GetConflict(ctx context.Context, id string) (SyncConflict, error) {
	if s == nil || s.conflictStore == nil {
		return SyncConflict{}, s.mapError(fmt.Errorf("core: conflict store is required"))
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return SyncConflict{}, s.mapError(fmt.Errorf("core: conflict id is required"))
	}
	conflict, err := s.conflictStore.Get(ctx, id)
	if err != nil {
		return SyncConflict{}, s.mapError(err)
	}
	return conflict, nil
}

func (s *Service) ListConflicts(ctx context.Context, filter ConflictFilter) (ConflictPage, error) {
	if s == nil || s.conflictStore == nil {
		return ConflictPage{}, s.mapError(fmt.Errorf("core: conflict store is required"))
	}
	filter.Page, filter.PerPage = s.normalizePagination(filter.Page, filter.PerPage)
	if filter.EntityType != "" && !filter.EntityType.IsValid() {
		return ConflictPage{}, s.mapError(fmt.Errorf("%w: %q", ErrInvalidEntityType, filter.EntityType))
	}
	page, err := s.conflictStore.List(ctx, filter)
	if err != nil {
		return ConflictPage{}, s.mapError(err)
	}
	return page, nil
}

func (s *Service) ConflictStatistics(ctx context.Context) (ConflictStats, error) {
	if s == nil || s.conflictStore == nil {
		return ConflictStats{}, s.mapError(fmt.Errorf("core: conflict store is required"))
	}
	stats, err := s.conflictStore.Stats(ctx)
	if err != nil {
		return ConflictStats{}, s.mapError(err)
	}
	return stats, nil
}

// ResolveConflict applies an operator decision to an unresolved conflict and
// enqueues the propagation work the decision implies. Concurrent resolvers
// race on a conditional update in the store; exactly one wins.
func (s *Service) ResolveConflict(ctx context.Context, conflictID string, req ResolutionRequest) (resolved SyncConflict, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"conflict_id":     conflictID,
		"resolution_type": string(req.Type),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "resolve_conflict", err, fields)
	}()

	if s == nil || s.conflictStore == nil {
		err = s.mapError(fmt.Errorf("core: conflict store is required"))
		return SyncConflict{}, err
	}
	conflictID = strings.TrimSpace(conflictID)
	if conflictID == "" {
		err = s.mapError(fmt.Errorf("core: conflict id is required"))
		return SyncConflict{}, err
	}
	if !req.Type.IsValid() {
		err = s.mapError(fmt.Errorf("%w: %q", ErrInvalidResolutionType, req.Type))
		return SyncConflict{}, err
	}

	current, getErr := s.conflictStore.Get(ctx, conflictID)
	if getErr != nil {
		err = s.mapError(getErr)
		return SyncConflict{}, err
	}
	if current.Resolved() {
		err = s.mapError(fmt.Errorf("%w: %s", ErrConflictAlreadyResolved, conflictID))
		return SyncConflict{}, err
	}

	resolvedData, directions, buildErr := buildResolution(current, req)
	if buildErr != nil {
		err = s.mapError(buildErr)
		return SyncConflict{}, err
	}

	resolvedAt := s.now()
	resolved, resolveErr := s.conflictStore.Resolve(ctx, conflictID, ResolveConflictUpdate{
		ResolutionType: req.Type,
		ResolvedBy:     strings.TrimSpace(req.ResolvedBy),
		ResolvedData:   resolvedData,
		ResolvedAt:     resolvedAt,
	})
	if resolveErr != nil {
		err = s.mapError(resolveErr)
		return SyncConflict{}, err
	}
	fields["entity_type"] = string(resolved.EntityType)
	fields["entity_id"] = resolved.EntityID

	for _, direction := range directions {
		if _, enqueueErr := s.EnqueueSync(ctx, EnqueueSyncInput{
			EntityType: resolved.EntityType,
			EntityID:   resolved.EntityID,
			Direction:  direction,
			Operation:  SyncOperationUpdate,
			ConflictID: resolved.ID,
		}); enqueueErr != nil {
			err = s.mapError(fmt.Errorf("core: conflict %s resolved but propagation enqueue failed: %w", resolved.ID, enqueueErr))
			return SyncConflict{}, err
		}
	}

	if err = s.publishConflictAudit(ctx, resolved, "sync.conflict.resolved", map[string]any{
		"resolution_type": string(req.Type),
		"resolved_by":     strings.TrimSpace(req.ResolvedBy),
		"directions":      directionStrings(directions),
	}); err != nil {
		err = s.mapError(err)
		return SyncConflict{}, err
	}
	return resolved, nil
}

// buildResolution computes the winning snapshot and the propagation
// directions a resolution implies. A merge that takes every field from one
// side collapses into the matching single-direction resolution.
func buildResolution(conflict SyncConflict, req ResolutionRequest) (map[string]any, []SyncDirection, error) {
	switch req.Type {
	case ResolutionKeepInternal:
		return copyAnyMap(conflict.InternalData), []SyncDirection{DirectionToExternal}, nil
	case ResolutionKeepExternal:
		return copyAnyMap(conflict.ExternalData), []SyncDirection{DirectionToInternal}, nil
	case ResolutionMerge:
		return buildMergeResolution(conflict, req.MergeSelections)
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidResolutionType, req.Type)
	}
}

func buildMergeResolution(conflict SyncConflict, selections map[string]FieldSide) (map[string]any, []SyncDirection, error) {
	if err := validateMergeSelections(conflict.ConflictFields, selections); err != nil {
		return nil, nil, err
	}

	// Non-conflicting fields agree on both sides; start from the internal
	// snapshot and overwrite each contested field with the chosen side.
	merged := copyAnyMap(conflict.InternalData)
	tookInternal := false
	tookExternal := false
	for field, side := range selections {
		switch side {
		case FieldSideInternal:
			merged[field] = conflict.InternalData[field]
			tookInternal = true
		case FieldSideExternal:
			merged[field] = conflict.ExternalData[field]
			tookExternal = true
		}
	}

	switch {
	case tookInternal && tookExternal:
		return merged, []SyncDirection{DirectionToExternal, DirectionToInternal}, nil
	case tookExternal:
		return merged, []SyncDirection{DirectionToInternal}, nil
	default:
		return merged, []SyncDirection{DirectionToExternal}, nil
	}
}

// validateMergeSelections requires a side for every conflicting field and
// rejects selections for fields that are not in conflict.
func validateMergeSelections(conflictFields []string, selections map[string]FieldSide) error {
	contested := make(map[string]struct{}, len(conflictFields))
	for _, field := range conflictFields {
		contested[field] = struct{}{}
	}

	var missing, extra, invalid []string
	for _, field := range conflictFields {
		side, ok := selections[field]
		if !ok {
			missing = append(missing, field)
			continue
		}
		if !side.IsValid() {
			invalid = append(invalid, field)
		}
	}
	for field := range selections {
		if _, ok := contested[field]; !ok {
			extra = append(extra, field)
		}
	}
	if len(missing) == 0 && len(extra) == 0 && len(invalid) == 0 {
		return nil
	}

	sort.Strings(missing)
	sort.Strings(extra)
	sort.Strings(invalid)

	var fieldErrors []goerrors.FieldError
	for _, field := range missing {
		fieldErrors = append(fieldErrors, goerrors.FieldError{
			Field:   field,
			Message: "merge selection is required for this conflicting field",
		})
	}
	for _, field := range extra {
		fieldErrors = append(fieldErrors, goerrors.FieldError{
			Field:   field,
			Message: "field is not in conflict",
		})
	}
	for _, field := range invalid {
		fieldErrors = append(fieldErrors, goerrors.FieldError{
			Field:   field,
			Message: "merge selection side must be internal or external",
		})
	}

	return goerrors.NewValidation(
		ErrIncompleteSelection.Error(),
		fieldErrors...,
	).WithTextCode(SyncErrorIncompleteSelection).
		WithMetadata(map[string]any{
			"missing": missing,
			"extra":   extra,
			"invalid": invalid,
		})
}

func (s *Service) publishConflictAudit(
	ctx context.Context,
	conflict SyncConflict,
	eventName string,
	payload map[string]any,
) error {
	if s == nil || s.auditBus == nil {
		return nil
	}
	occurredAt := s.now()
	event := AuditEvent{
		ID:         buildAuditEventID(conflict.ID, eventName, occurredAt),
		Name:       eventName,
		EntityType: string(conflict.EntityType),
		EntityID:   conflict.EntityID,
		Source:     "syncengine.conflicts",
		OccurredAt: occurredAt,
		Payload: mergeMetadata(payload, map[string]any{
			"conflict_id": conflict.ID,
			"entity_type": string(conflict.EntityType),
			"entity_id":   conflict.EntityID,
		}),
		Metadata: copyAnyMap(conflict.Metadata),
	}
	return s.auditBus.Publish(ctx, event)
}

func buildAuditEventID(subjectID string, eventName string, occurredAt time.Time) string {
	payload := strings.Join(
		[]string{
			strings.TrimSpace(subjectID),
			strings.TrimSpace(eventName),
			occurredAt.UTC().Format(time.RFC3339Nano),
		},
		"|",
	)
	digest := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(digest[:])
}

func directionStrings(directions []SyncDirection) []string {
	out := make([]string, 0, len(directions))
	for _, direction := range directions {
		out = append(out, string(direction))
	}
	return out
}

func (s *Service) normalizePagination(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	defaultPerPage := s.config.Pagination.DefaultPerPage
	if defaultPerPage < 1 {
		defaultPerPage = 25
	}
	maxPerPage := s.config.Pagination.MaxPerPage
	if maxPerPage < defaultPerPage {
		maxPerPage = defaultPerPage
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}
