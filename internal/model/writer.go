package model

import (
	"context"
	"fmt"

	"github.com/minhct/gh-event-pipeline/cfg"
	"github.com/minhct/gh-event-pipeline/pkg/db"
	"github.com/minhct/gh-event-pipeline/pkg/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Writer flushes one processor batch to storage: snapshot upserts followed
// by metric inserts, committed in a single transaction or not at all.
type Writer struct {
	Config *cfg.Config
	Logger log.Logger
	Mysql  *db.Mysql
}

func NewWriter(config *cfg.Config, logger log.Logger, mysql *db.Mysql) (*Writer, error) {
	return &Writer{
		Config: config,
		Logger: logger,
		Mysql:  mysql,
	}, nil
}

// Flush writes both buffers transactionally. The snapshot upsert merges on
// repo_id conflict: full_name always follows the incoming row, language
// and description only replace NULL-incoming with the existing value, and
// total_stars takes the greater of the two so stale events never regress
// the count.
func (w *Writer) Flush(ctx context.Context, repos []Repo, metrics []Metric) error {
	if len(repos) == 0 && len(metrics) == 0 {
		return nil
	}

	gdb, err := w.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	return gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(repos) > 0 {
			result := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "repo_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"full_name":       gorm.Expr("VALUES(full_name)"),
					"language":        gorm.Expr("COALESCE(VALUES(language), language)"),
					"description":     gorm.Expr("COALESCE(VALUES(description), description)"),
					"total_stars":     gorm.Expr("GREATEST(VALUES(total_stars), total_stars)"),
					"last_updated_at": gorm.Expr("VALUES(last_updated_at)"),
				}),
			}).CreateInBatches(repos, 100)
			if result.Error != nil {
				return fmt.Errorf("failed to upsert repositories: %w", result.Error)
			}
		}

		if len(metrics) > 0 {
			result := tx.CreateInBatches(metrics, 100)
			if result.Error != nil {
				return fmt.Errorf("failed to insert metrics: %w", result.Error)
			}
		}

		return nil
	})
}
