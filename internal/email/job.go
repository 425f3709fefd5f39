package email

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type JobStatus string

const (
	JobQueued JobStatus = "queued"
	JobSent   JobStatus = "sent"
	JobFailed JobStatus = "failed"
)

// Job is an outbound mail persisted before it is handed to the queue,
// so a worker restart never loses a message.
type Job struct {
	ID      string `gorm:"primaryKey;size:26"` // ULID
	To      string `gorm:"type:varchar(255);not null"`
	Subject string `gorm:"type:varchar(255);not null"`
	Body    string `gorm:"type:text;not null"`

	Status   JobStatus `gorm:"type:varchar(16);index;default:'queued'"`
	Attempts int       `gorm:"default:0"`
	Error    string    `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Job) TableName() string { return "email_jobs" }

type JobRepo struct {
	db *gorm.DB
}

func NewJobRepo(db *gorm.DB) *JobRepo {
	return &JobRepo{db: db}
}

func (r *JobRepo) Create(ctx context.Context, j *Job) error {
	return r.db.WithContext(ctx).Create(j).Error
}

func (r *JobRepo) Get(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *JobRepo) MarkSent(ctx context.Context, id string, attempts int) error {
	return r.db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(map[string]any{
		"status":   JobSent,
		"attempts": attempts,
		"error":    "",
	}).Error
}

func (r *JobRepo) MarkFailed(ctx context.Context, id string, attempts int, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(map[string]any{
		"status":   JobFailed,
		"attempts": attempts,
		"error":    msg,
	}).Error
}
