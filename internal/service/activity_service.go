package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"chocolata/internal/domain"
	"chocolata/internal/middleware"
	"chocolata/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrInvalidActivityFilter = errors.New("invalid activity filter")

// changeSet collects field changes for one activity entry
type changeSet map[string]domain.FieldChange

// diff records field when its printed value changed
func (c changeSet) diff(field string, old, new any) changeSet {
	if fmt.Sprint(old) != fmt.Sprint(new) {
		c[field] = domain.FieldChange{Old: old, New: new}
	}
	return c
}

// set records a field on create (old nil) or delete (new nil)
func (c changeSet) set(field string, old, new any) changeSet {
	c[field] = domain.FieldChange{Old: old, New: new}
	return c
}

// ActivityLog writes the admin audit trail. The actor is the authenticated caller on ctx;
// background jobs record no actor. A nil *ActivityLog records nothing.
type ActivityLog struct {
	repo   repository.ActivityLogRepository
	now    func() time.Time
	logger *zap.Logger
}

// NewActivityLog creates the audit trail writer
func NewActivityLog(repo repository.ActivityLogRepository, logger *zap.Logger) *ActivityLog {
	return &ActivityLog{repo: repo, now: time.Now, logger: logger}
}

// Record appends one entry. A failed write is logged and never fails the change it describes.
func (l *ActivityLog) Record(ctx context.Context, action domain.ActivityAction, table string, recordID uuid.UUID, changes changeSet) {
	if l == nil {
		return
	}
	if action == domain.ActivityUpdate && len(changes) == 0 {
		return
	}

	entry := &domain.ActivityEntry{
		ID:        uuid.New(),
		Action:    action,
		TableName: table,
		RecordID:  recordID,
		Changes:   changes,
		CreatedAt: l.now(),
	}
	if actor, ok := middleware.GetUserID(ctx); ok {
		entry.UserID = &actor
	}

	// the change is already committed, so the caller's cancellation must not drop its trail
	if err := l.repo.Record(context.WithoutCancel(ctx), entry); err != nil {
		l.logger.Warn("Failed to record activity",
			zap.String("table", table),
			zap.String("action", string(action)),
			zap.String("record_id", recordID.String()),
			zap.Error(err),
		)
	}
}

// List returns recent entries filtered by action and table
func (l *ActivityLog) List(ctx context.Context, filter domain.ActivityFilter) ([]*domain.ActivityEntry, error) {
	if filter.Action != "" && !filter.Action.Valid() {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidActivityFilter, filter.Action)
	}
	if filter.Table != "" && !slices.Contains(domain.ActivityTables, filter.Table) {
		return nil, fmt.Errorf("%w: unknown table %q", ErrInvalidActivityFilter, filter.Table)
	}
	if filter.Limit < 0 {
		return nil, fmt.Errorf("%w: limit cannot be negative", ErrInvalidActivityFilter)
	}
	return l.repo.List(ctx, filter)
}
