package server

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/alumnihub/messaging/internal/database"
	"github.com/alumnihub/messaging/internal/types"
)

// LockController owns the singleton lock state for the public channel.
// Lock hides the existing public history in bulk; Unlock restores it.
// Messages a moderator deleted individually stay deleted, the two
// mechanisms never touch each other's rows.
type LockController struct {
	mu    sync.Mutex
	db    database.MessagingRepository
	log   *log.Logger
	state types.LockStatus
}

func NewLockController(logger *log.Logger, db database.MessagingRepository) (*LockController, error) {
	lock, err := db.GetLock()
	if err != nil {
		return nil, types.NewStorageError("get lock", err)
	}

	return &LockController{
		db:    db,
		log:   logger,
		state: lockStatusFromRow(lock),
	}, nil
}

func lockStatusFromRow(lock database.MessagingLock) types.LockStatus {
	status := types.LockStatus{
		IsLocked: lock.IsLocked,
		LockedBy: int(lock.LockedBy.Int64),
		Reason:   lock.Reason.String,
	}
	if lock.LockedAt.Valid {
		t := lock.LockedAt.Time
		status.LockedAt = &t
	}
	return status
}

// Lock hides all currently visible public messages, then records who
// locked and why.
func (lc *LockController) Lock(adminId int, reason string) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	hidden, err := lc.db.SetHiddenAll(true)
	if err != nil {
		return types.NewStorageError("hide public messages", err)
	}

	now := time.Now().UTC()
	row := database.MessagingLock{
		IsLocked: true,
		LockedBy: sql.NullInt64{Int64: int64(adminId), Valid: true},
		LockedAt: sql.NullTime{Time: now, Valid: true},
		Reason:   sql.NullString{String: reason, Valid: true},
	}
	if err := lc.db.SetLock(row); err != nil {
		return types.NewStorageError("set lock", err)
	}

	lc.state = lockStatusFromRow(row)
	lc.log.Printf("messaging locked by user %d (%d messages hidden)", adminId, hidden)
	return nil
}

// Unlock restores messages hidden by Lock and clears the audit fields.
func (lc *LockController) Unlock() error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	restored, err := lc.db.SetHiddenAll(false)
	if err != nil {
		return types.NewStorageError("unhide public messages", err)
	}

	row := database.MessagingLock{IsLocked: false}
	if err := lc.db.SetLock(row); err != nil {
		return types.NewStorageError("set lock", err)
	}

	lc.state = lockStatusFromRow(row)
	lc.log.Printf("messaging unlocked (%d messages restored)", restored)
	return nil
}

func (lc *LockController) Status() types.LockStatus {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	return lc.state
}

func (lc *LockController) IsLocked() bool {
	return lc.Status().IsLocked
}
