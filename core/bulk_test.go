package core

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func recordConflicts(t *testing.T, service *Service, count int) []string {
	t.Helper()
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		recorded, err := service.RecordConflict(context.Background(), RecordConflictInput{
			EntityType:   EntityTypeContact,
			EntityID:     "contact_" + string(rune('a'+i)),
			InternalData: map[string]any{"email": "internal@npd.test"},
			ExternalData: map[string]any{"email": "external@crm.test"},
		})
		if err != nil {
			t.Fatalf("record conflict %d: %v", i, err)
		}
		ids = append(ids, recorded.Conflict.ID)
	}
	return ids
}

func TestBulkResolvePartialFailureNeverAborts(t *testing.T) {
	service, _, _, _, _, _ := newTestService(t)
	ids := recordConflicts(t, service, 3)

	// a missing ID in the middle must not stop the later ones
	requested := []string{ids[0], "missing_1", ids[1], "missing_2", ids[2]}
	result, err := service.BulkResolve(context.Background(), BulkResolveRequest{
		ConflictIDs: requested,
		Type:        ResolutionKeepInternal,
		ResolvedBy:  "operator_1",
	})
	if err != nil {
		t.Fatalf("bulk resolve: %v", err)
	}
	if result.Succeeded != 3 || result.Failed != 2 {
		t.Fatalf("expected 3 succeeded / 2 failed, got %d/%d", result.Succeeded, result.Failed)
	}
	if len(result.Results) != len(requested) {
		t.Fatalf("expected %d results, got %d", len(requested), len(result.Results))
	}
	for i, outcome := range result.Results {
		if outcome.ConflictID != requested[i] {
			t.Fatalf("result %d out of order: expected %s, got %s", i, requested[i], outcome.ConflictID)
		}
	}
	if result.Results[1].Err == nil || result.Results[3].Err == nil {
		t.Fatalf("expected failures for missing ids")
	}
	if result.Results[0].Err != nil || result.Results[2].Err != nil || result.Results[4].Err != nil {
		t.Fatalf("expected successes for known ids")
	}
}

func TestBulkResolveDuplicateIDFailsSecondTime(t *testing.T) {
	service, _, _, _, _, _ := newTestService(t)
	ids := recordConflicts(t, service, 1)

	result, err := service.BulkResolve(context.Background(), BulkResolveRequest{
		ConflictIDs: []string{ids[0], ids[0]},
		Type:        ResolutionKeepExternal,
	})
	if err != nil {
		t.Fatalf("bulk resolve: %v", err)
	}
	if result.Succeeded != 1 || result.Failed != 1 {
		t.Fatalf("expected 1 succeeded / 1 failed, got %d/%d", result.Succeeded, result.Failed)
	}
	if result.Results[0].Err != nil {
		t.Fatalf("expected first occurrence to succeed: %v", result.Results[0].Err)
	}
	var richErr *goerrors.Error
	if !goerrors.As(result.Results[1].Err, &richErr) || richErr.TextCode != SyncErrorAlreadyResolved {
		t.Fatalf("expected already resolved for duplicate, got %v", result.Results[1].Err)
	}
}

func TestBulkResolveRejectsMergePolicy(t *testing.T) {
	service, _, _, _, _, _ := newTestService(t)
	ids := recordConflicts(t, service, 1)

	_, err := service.BulkResolve(context.Background(), BulkResolveRequest{
		ConflictIDs: ids,
		Type:        ResolutionMerge,
	})
	if err == nil {
		t.Fatalf("expected merge to be rejected in bulk")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != SyncErrorBadInput {
		t.Fatalf("expected %s, got %v", SyncErrorBadInput, err)
	}

	// the single conflict stays untouched
	current, err := service.GetConflict(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("get conflict: %v", err)
	}
	if current.Resolved() {
		t.Fatalf("expected conflict to remain unresolved after rejected bulk")
	}
}
