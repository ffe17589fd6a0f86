package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// ClockSkewTolerance absorbs client/server clock drift when versions are
// unavailable and timestamps are all we have to compare.
const ClockSkewTolerance = time.Second

// Resolution outcome of resolving one conflict. Apply, if set, is written to
// the local store; Requeue, if set, is appended to the session for another
// push attempt. Pending means no automatic resolution was possible and the
// conflict stays persisted for out-of-band handling.
type Resolution struct {
	Action     Policy
	Apply      *StoredRecord
	Requeue    *Operation
	Pending    bool
	ResolvedAt time.Time
}

// Resolver detects and resolves local/remote divergence. Merge functions
// are registered per resource type by the caller.
type Resolver struct {
	log    *slog.Logger
	merges map[string]MergeFunc
	now    func() time.Time
}

func NewResolver(log *slog.Logger) *Resolver {
	return &Resolver{
		log:    log.With(slog.String("component", "conflict_resolver")),
		merges: make(map[string]MergeFunc),
		now:    time.Now,
	}
}

// RegisterMerge installs the field-level merge used by PolicyMerge for a
// resource type.
func (r *Resolver) RegisterMerge(resourceType string, fn MergeFunc) {
	r.merges[resourceType] = fn
}

// Detect reports whether two versions of the same record diverge. A record
// present on only one side is never a conflict, it is a plain create or
// delete.
func (r *Resolver) Detect(local, remote *VersionInfo) bool {
	if local == nil || remote == nil {
		return false
	}
	if local.Version > 0 && remote.Version > 0 {
		return local.Version != remote.Version
	}
	diff := local.ModifiedAt.Sub(remote.ModifiedAt)
	if diff < 0 {
		diff = -diff
	}
	return diff > ClockSkewTolerance
}

// NewConflict builds the persisted conflict entity for a detected divergence.
func (r *Resolver) NewConflict(clientID, resourceType, resourceID string, local, remote VersionInfo, localPayload, remotePayload json.RawMessage) *Conflict {
	return &Conflict{
		ID:            uuid.NewString(),
		ClientID:      clientID,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		Local:         local,
		Remote:        remote,
		LocalPayload:  localPayload,
		RemotePayload: remotePayload,
		DetectedAt:    r.now(),
		Status:        ConflictPending,
	}
}

// Resolve applies the configured policy to a pending conflict. The conflict
// entity is mutated in place to record the chosen action; a resolved
// conflict is never resolved again.
func (r *Resolver) Resolve(conflict *Conflict, policy Policy) (*Resolution, error) {
	if conflict.Status == ConflictResolved {
		return nil, ErrConflictResolved
	}

	now := r.now()
	res := &Resolution{Action: policy, ResolvedAt: now}

	switch policy {
	case PolicyKeepLocal:
		// Remote gets overwritten: push the local payload again against the
		// server's current version.
		res.Requeue = &Operation{
			ID:           uuid.NewString(),
			ResourceType: conflict.ResourceType,
			ResourceID:   conflict.ResourceID,
			Op:           OpUpdate,
			Payload:      conflict.LocalPayload,
			BaseVersion:  conflict.Remote.Version,
			Timestamp:    now,
		}

	case PolicyKeepRemote:
		res.Apply = r.remoteRecord(conflict)

	case PolicyMerge:
		fn, ok := r.merges[conflict.ResourceType]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoMergeFunc, conflict.ResourceType)
		}
		merged, err := fn(conflict.LocalPayload, conflict.RemotePayload)
		if err != nil {
			return nil, fmt.Errorf("merge %s/%s: %w", conflict.ResourceType, conflict.ResourceID, err)
		}
		res.Apply = &StoredRecord{
			ResourceType: conflict.ResourceType,
			ID:           conflict.ResourceID,
			Payload:      merged,
			Version:      conflict.Remote.Version,
			ModifiedAt:   now,
			Hash:         PayloadHash(merged),
			SyncStatus:   StatusPending,
		}
		res.Requeue = &Operation{
			ID:           uuid.NewString(),
			ResourceType: conflict.ResourceType,
			ResourceID:   conflict.ResourceID,
			Op:           OpUpdate,
			Payload:      merged,
			BaseVersion:  conflict.Remote.Version,
			Timestamp:    now,
		}

	case PolicyKeepBoth:
		// Remote wins the contended identity; the local change survives as a
		// brand new resource and is pushed as a create.
		res.Apply = r.remoteRecord(conflict)
		res.Requeue = &Operation{
			ID:           uuid.NewString(),
			ResourceType: conflict.ResourceType,
			ResourceID:   uuid.NewString(),
			Op:           OpCreate,
			Payload:      conflict.LocalPayload,
			Timestamp:    now,
		}

	case PolicyManual:
		res.Pending = true
		r.log.Debug("conflict left for manual resolution",
			"conflict_id", conflict.ID,
			"resource", conflict.ResourceType+"/"+conflict.ResourceID)
		return res, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}

	conflict.Status = ConflictResolved
	conflict.Resolution = string(policy)
	conflict.ResolvedAt = now
	return res, nil
}

func (r *Resolver) remoteRecord(conflict *Conflict) *StoredRecord {
	return &StoredRecord{
		ResourceType: conflict.ResourceType,
		ID:           conflict.ResourceID,
		Payload:      conflict.RemotePayload,
		Version:      conflict.Remote.Version,
		ModifiedAt:   conflict.Remote.ModifiedAt,
		Hash:         conflict.Remote.Hash,
		SyncStatus:   StatusSynced,
	}
}

// PayloadHash content hash used in version comparisons.
func PayloadHash(payload json.RawMessage) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
