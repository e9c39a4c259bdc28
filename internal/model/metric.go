package model

import (
	"time"

	"github.com/minhct/gh-event-pipeline/cfg"
	"github.com/minhct/gh-event-pipeline/pkg/db"
	"github.com/minhct/gh-event-pipeline/pkg/log"
)

// Metric is one append-only time-series record, one per accepted event.
// The repo_id and timestamp indexes serve the downstream read API's
// range queries.
type Metric struct {
	Model
	ID            uint64    `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	RepoID        int64     `json:"repo_id" gorm:"column:repo_id;not null;index:idx_repo_metrics_repo_id"`
	RepoName      string    `json:"repo_name" gorm:"column:repo_name;type:varchar(255);not null"`
	EventType     string    `json:"event_type" gorm:"column:event_type;type:varchar(64);not null"`
	Timestamp     time.Time `json:"timestamp" gorm:"column:timestamp;not null;index:idx_repo_metrics_timestamp"`
	StarsDelta    int       `json:"stars_delta" gorm:"column:stars_delta;not null;default:0"`
	VelocityScore float64   `json:"velocity_score" gorm:"column:velocity_score;type:decimal(12,4);not null"`
}

func NewMetric(config *cfg.Config, logger log.Logger, mysql *db.Mysql) (*Metric, error) {
	return &Metric{
		Model: Model{
			Config: config,
			Logger: logger,
			Mysql:  mysql,
		},
	}, nil
}

func (m *Metric) TableName() string {
	return "repo_metrics"
}
