package store

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore writes results to postgres.
type GormStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// OpenGorm connects to dsn and migrates the match_results table.
func OpenGorm(ctx context.Context, dsn string, log *zap.Logger) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&MatchResult{}); err != nil {
		return nil, multierr.Append(fmt.Errorf("migrate match_results: %w", err), closeDB(db))
	}
	log.Info("match history store ready", zap.String("driver", "postgres"))
	return &GormStore{db: db, log: log}, nil
}

func (g *GormStore) Record(ctx context.Context, res MatchResult) error {
	prepare(&res)
	if err := g.db.WithContext(ctx).Create(&res).Error; err != nil {
		return fmt.Errorf("insert match result: %w", err)
	}
	return nil
}

func (g *GormStore) Recent(ctx context.Context, limit int) ([]MatchResult, error) {
	var out []MatchResult
	q := g.db.WithContext(ctx).Order("ended_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query match results: %w", err)
	}
	return out, nil
}

func (g *GormStore) Close() error {
	return closeDB(g.db)
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
