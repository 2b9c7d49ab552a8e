package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

// documentRow is the single table backing every collection.
type documentRow struct {
	Collection string         `gorm:"primaryKey;size:128"`
	ID         string         `gorm:"primaryKey;size:128"`
	Data       datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time      `gorm:"index"`
	UpdatedAt  time.Time
}

func (documentRow) TableName() string { return "documents" }

type GormStore struct {
	db      *gorm.DB
	dialect string
	log     *logger.Logger
}

// Open connects to postgres or sqlite and migrates the documents table.
func Open(driver, dsn string, baseLog *logger.Logger) (*GormStore, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("docstore: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("docstore: open %s: %w", driver, err)
	}
	return NewGormStore(db, baseLog)
}

func NewGormStore(db *gorm.DB, baseLog *logger.Logger) (*GormStore, error) {
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("docstore: migrate: %w", err)
	}
	return &GormStore{
		db:      db,
		dialect: db.Dialector.Name(),
		log:     baseLog.With("component", "GormDocStore", "dialect", db.Dialector.Name()),
	}, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) Set(ctx context.Context, collection, id string, doc Document) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	raw, err := encode(doc)
	if err != nil {
		return err
	}
	row := documentRow{Collection: collection, ID: id, Data: datatypes.JSON(raw)}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(&row).Error
	return backendErr("set", err)
}

func (s *GormStore) Get(ctx context.Context, collection, id string) (Document, bool, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, false, err
	}
	var row documentRow
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, backendErr("get", err)
	}
	doc, err := decode(row.Data)
	if err != nil {
		return nil, false, backendErr("get", err)
	}
	return doc, true, nil
}

func (s *GormStore) Mutate(ctx context.Context, collection, id string, fn MutateFunc) (Document, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, err
	}
	var (
		out        Document
		fnErr      error
		errMissing = errors.New("missing")
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if s.dialect == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var row documentRow
		if err := q.Where("collection = ? AND id = ?", collection, id).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errMissing
			}
			return err
		}
		cur, err := decode(row.Data)
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			fnErr = err
			return err
		}
		raw, err := encode(next)
		if err != nil {
			fnErr = err
			return err
		}
		if err := tx.Model(&documentRow{}).
			Where("collection = ? AND id = ?", collection, id).
			Updates(map[string]interface{}{
				"data":       datatypes.JSON(raw),
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}
		out, err = decode(raw)
		return err
	})
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, errMissing):
		return nil, ErrNotFound
	case fnErr != nil:
		return nil, fnErr
	default:
		return nil, backendErr("mutate", err)
	}
}

func (s *GormStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := validateQuery(collection, q); err != nil {
		return nil, err
	}
	tx := s.db.WithContext(ctx).Model(&documentRow{}).Where("collection = ?", collection)
	for _, f := range q.Filters {
		tx = tx.Where(datatypes.JSONQuery("data").Equals(f.Value, f.Field))
	}
	if q.OrderBy != "" {
		tx = tx.Order(clause.OrderByColumn{
			Column: clause.Column{Name: s.fieldExpr(q.OrderBy), Raw: true},
			Desc:   q.Desc,
		})
	}
	tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: q.Desc})
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var rows []documentRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, backendErr("query", err)
	}
	out := make([]Document, 0, len(rows))
	for _, row := range rows {
		doc, err := decode(row.Data)
		if err != nil {
			return nil, backendErr("query", err)
		}
		out = append(out, doc)
	}
	return out, nil
}

// fieldExpr is only called with names that passed fieldRE.
func (s *GormStore) fieldExpr(field string) string {
	if s.dialect == "postgres" {
		return fmt.Sprintf("data->>'%s'", field)
	}
	return fmt.Sprintf("JSON_EXTRACT(data, '$.%s')", field)
}
