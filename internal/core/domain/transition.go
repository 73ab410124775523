package domain

import "time"

// ScanAction tags the outcome of a scan.
type ScanAction string

const (
	ActionStored           ScanAction = "stored"
	ActionDispatched       ScanAction = "dispatched"
	ActionInstalled        ScanAction = "installed"
	ActionUninstalled      ScanAction = "uninstalled"
	ActionAlreadyCompleted ScanAction = "already_completed"
)

// nextStatus defines the only allowed move out of each status.
// StatusUninstalled is terminal.
var nextStatus = map[RecordStatus]RecordStatus{
	StatusInStock:    StatusDispatched,
	StatusDispatched: StatusInstalled,
	StatusInstalled:  StatusUninstalled,
}

// CanTransitionTo reports whether next directly follows s.
func (s RecordStatus) CanTransitionTo(next RecordStatus) bool {
	n, ok := nextStatus[s]
	return ok && n == next
}

// Terminal reports whether no scan can move the status any further.
func (s RecordStatus) Terminal() bool {
	_, ok := nextStatus[s]
	return !ok
}

// Advance computes the state that follows a scan of key at now.
//
// When existing is nil a new IN_STOCK record is produced. Otherwise a copy of
// existing moved one step forward is returned; existing itself is never
// modified. Dispatching records no actor. An UNINSTALLED record comes back
// unchanged with ActionAlreadyCompleted.
func Advance(existing *InventoryRecord, key Key, now time.Time, actor, client string) (InventoryRecord, ScanAction) {
	if existing == nil {
		ts := now
		return InventoryRecord{
			Reference: key.Reference,
			Serial:    key.Serial,
			Status:    StatusInStock,
			StockedBy: actor,
			StockedAt: &ts,
			Client:    client,
		}, ActionStored
	}

	next := *existing
	ts := now
	switch existing.Status {
	case StatusInStock:
		next.Status = StatusDispatched
		next.DispatchedAt = &ts
		return next, ActionDispatched
	case StatusDispatched:
		next.Status = StatusInstalled
		next.InstalledAt = &ts
		next.InstalledBy = actor
		return next, ActionInstalled
	case StatusInstalled:
		next.Status = StatusUninstalled
		next.UninstalledAt = &ts
		next.UninstalledBy = actor
		return next, ActionUninstalled
	default:
		return next, ActionAlreadyCompleted
	}
}
