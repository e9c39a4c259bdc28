package model

import (
	"time"

	"github.com/minhct/gh-event-pipeline/cfg"
	"github.com/minhct/gh-event-pipeline/pkg/db"
	"github.com/minhct/gh-event-pipeline/pkg/log"
)

// Repo is one repository snapshot row. Rows are created on the first event
// referencing the repository and merged on every later one; the pipeline
// never deletes them.
type Repo struct {
	Model
	RepoID        int64     `json:"repo_id" gorm:"column:repo_id;primaryKey;autoIncrement:false"`
	FullName      string    `json:"full_name" gorm:"column:full_name;type:varchar(255);not null"`
	Language      *string   `json:"language" gorm:"column:language;type:varchar(100)"`
	Description   *string   `json:"description" gorm:"column:description;type:varchar(500)"`
	TotalStars    int64     `json:"total_stars" gorm:"column:total_stars;not null;default:0"`
	FirstSeenAt   time.Time `json:"first_seen_at" gorm:"column:first_seen_at;not null"`
	LastUpdatedAt time.Time `json:"last_updated_at" gorm:"column:last_updated_at;not null"`
}

func NewRepo(config *cfg.Config, logger log.Logger, mysql *db.Mysql) (*Repo, error) {
	return &Repo{
		Model: Model{
			Config: config,
			Logger: logger,
			Mysql:  mysql,
		},
	}, nil
}

func (r *Repo) TableName() string {
	return "repositories"
}

// MergeSnapshot folds an incoming snapshot into an existing one under the
// same rules the database upsert applies: full name follows the incoming
// event, language and description are only replaced by non-null values,
// and total stars never regress.
func MergeSnapshot(existing, incoming Repo) Repo {
	out := existing
	out.FullName = incoming.FullName
	if incoming.Language != nil {
		out.Language = incoming.Language
	}
	if incoming.Description != nil {
		out.Description = incoming.Description
	}
	if incoming.TotalStars > out.TotalStars {
		out.TotalStars = incoming.TotalStars
	}
	out.LastUpdatedAt = incoming.LastUpdatedAt
	return out
}
