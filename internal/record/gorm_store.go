package record

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// PageField is one persisted record field. The (record_id, name) pair is
// unique; writes upsert on it.
type PageField struct {
	ID        uint   `gorm:"primaryKey"`
	RecordID  int    `gorm:"not null;uniqueIndex:idx_record_name"`
	Name      string `gorm:"size:191;not null;uniqueIndex:idx_record_name"`
	Value     string `gorm:"type:longtext"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GormStore implements Store on a GORM-managed MySQL table.
type GormStore struct {
	db *gorm.DB
}

// OpenMySQL connects to MySQL and migrates the page-field table.
func OpenMySQL(dsn string) (*GormStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&PageField{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// NewGormStore wraps an existing gorm handle (tests, shared pools).
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// ReadField returns the stored value for one record field.
func (s *GormStore) ReadField(ctx context.Context, recordID int, name string) (string, bool, error) {
	var field PageField
	err := s.db.WithContext(ctx).
		Where("record_id = ? AND name = ?", recordID, name).
		First(&field).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return field.Value, true, nil
}

// WriteField upserts one record field.
func (s *GormStore) WriteField(ctx context.Context, recordID int, name, value string) error {
	field := PageField{
		RecordID: recordID,
		Name:     name,
		Value:    value,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "record_id"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&field).Error
}
