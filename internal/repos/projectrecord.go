package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cassiama/LicenseGuard-API/internal/logger"
	"github.com/cassiama/LicenseGuard-API/internal/types"
)

// ErrStaleRecord is returned by UpdateIf when the row is not in the expected
// status, i.e. another writer got there first.
var ErrStaleRecord = errors.New("project record not in expected status")

// ProjectRecordStore is the point-in-time read model of "where is analysis X
// right now". Get returns nil, not an error, on miss. UpdateIf is a
// compare-and-swap on status so status transitions never run backward even if
// two writers race on the same id.
type ProjectRecordStore interface {
	Upsert(ctx context.Context, record *types.ProjectRecord) error
	Get(ctx context.Context, id string) (*types.ProjectRecord, error)
	UpdateIf(ctx context.Context, id string, expected types.Status, record *types.ProjectRecord) error
}

type projectRecordStore struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRecordStore(db *gorm.DB, baseLog *logger.Logger) ProjectRecordStore {
	return &projectRecordStore{db: db, log: baseLog.With("repo", "ProjectRecordStore")}
}

func (s *projectRecordStore) Upsert(ctx context.Context, record *types.ProjectRecord) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(record).Error
}

func (s *projectRecordStore) Get(ctx context.Context, id string) (*types.ProjectRecord, error) {
	var record types.ProjectRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *projectRecordStore) UpdateIf(ctx context.Context, id string, expected types.Status, record *types.ProjectRecord) error {
	res := s.db.WithContext(ctx).
		Model(&types.ProjectRecord{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(map[string]interface{}{
			"name":       record.Name,
			"status":     record.Status,
			"updated_at": record.UpdatedAt,
			"result":     record.Result,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleRecord
	}
	return nil
}
