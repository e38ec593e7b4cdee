package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// BulkResolveRequest resolves many conflicts with one whole-record policy.
// Merge is rejected here because per-field selections cannot apply uniformly
// across records with different conflicting fields.
type BulkResolveRequest struct {
	ConflictIDs []string
	Type        ResolutionType
	ResolvedBy  string
}

// BulkResolve applies the policy to each conflict independently and never
// aborts early. Results preserve request order, one entry per requested ID,
// duplicates included.
func (s *Service) BulkResolve(ctx context.Context, req BulkResolveRequest) (result BulkResolveResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"resolution_type": string(req.Type),
		"requested":       len(req.ConflictIDs),
	}
	defer func() {
		fields["succeeded"] = result.Succeeded
		fields["failed"] = result.Failed
		s.observeOperation(ctx, startedAt, "bulk_resolve", err, fields)
	}()

	if s == nil || s.conflictStore == nil {
		err = s.mapError(fmt.Errorf("core: conflict store is required"))
		return BulkResolveResult{}, err
	}
	if len(req.ConflictIDs) == 0 {
		err = s.mapError(fmt.Errorf("core: at least one conflict id is required"))
		return BulkResolveResult{}, err
	}
	if req.Type == ResolutionMerge {
		err = s.mapError(ErrBulkMergeNotAllowed)
		return BulkResolveResult{}, err
	}
	if !req.Type.IsValid() {
		err = s.mapError(fmt.Errorf("%w: %q", ErrInvalidResolutionType, req.Type))
		return BulkResolveResult{}, err
	}

	result.Results = make([]BulkResolveOutcome, 0, len(req.ConflictIDs))
	for _, conflictID := range req.ConflictIDs {
		conflictID = strings.TrimSpace(conflictID)
		_, resolveErr := s.ResolveConflict(ctx, conflictID, ResolutionRequest{
			Type:       req.Type,
			ResolvedBy: req.ResolvedBy,
		})
		outcome := BulkResolveOutcome{ConflictID: conflictID, Err: resolveErr}
		if resolveErr != nil {
			result.Failed++
		} else {
			result.Succeeded++
		}
		result.Results = append(result.Results, outcome)
	}
	return result, nil
}
