package database

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
)

// BunJob represents the conversion_jobs table for Bun ORM
type BunJob struct {
	bun.BaseModel `bun:"table:conversion_jobs,alias:j"`

	ID           string     `bun:"id,pk"` // ULID as string
	SourceName   string     `bun:"source_name,notnull"`
	SourceFormat string     `bun:"source_format,notnull,default:''"`
	TargetFormat string     `bun:"target_format,notnull"`
	Status       string     `bun:"status,notnull,default:'pending'"`
	Progress     int        `bun:"progress,notnull,default:0"`
	CurrentStep  string     `bun:"current_step,notnull,default:''"`
	Message      string     `bun:"message,notnull,default:''"`
	Error        string     `bun:"error,nullzero"`
	ErrorKind    string     `bun:"error_kind,nullzero"`
	ResultName   string     `bun:"result_name,nullzero"`
	ResultMIME   string     `bun:"result_mime,nullzero"`
	ResultKey    string     `bun:"result_key,nullzero"`
	ResultSize   int64      `bun:"result_size,notnull,default:0"`
	Fallback     string     `bun:"fallback,nullzero"`
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	StartedAt    *time.Time `bun:"started_at,nullzero"`
	CompletedAt  *time.Time `bun:"completed_at,nullzero"`
}

// ToJob converts BunJob to Job
func (bj *BunJob) ToJob() (*Job, error) {
	parsedULID, err := ulid.Parse(bj.ID)
	if err != nil {
		return nil, err
	}

	return &Job{
		ID:           parsedULID,
		SourceName:   bj.SourceName,
		SourceFormat: bj.SourceFormat,
		TargetFormat: bj.TargetFormat,
		Status:       JobStatus(bj.Status),
		Progress:     bj.Progress,
		CurrentStep:  bj.CurrentStep,
		Message:      bj.Message,
		Error:        bj.Error,
		ErrorKind:    bj.ErrorKind,
		ResultName:   bj.ResultName,
		ResultMIME:   bj.ResultMIME,
		ResultKey:    bj.ResultKey,
		ResultSize:   bj.ResultSize,
		Fallback:     bj.Fallback,
		CreatedAt:    bj.CreatedAt,
		UpdatedAt:    bj.UpdatedAt,
		StartedAt:    bj.StartedAt,
		CompletedAt:  bj.CompletedAt,
	}, nil
}

// FromJob converts Job to BunJob
func FromJob(job *Job) *BunJob {
	return &BunJob{
		ID:           job.ID.String(),
		SourceName:   job.SourceName,
		SourceFormat: job.SourceFormat,
		TargetFormat: job.TargetFormat,
		Status:       string(job.Status),
		Progress:     job.Progress,
		CurrentStep:  job.CurrentStep,
		Message:      job.Message,
		Error:        job.Error,
		ErrorKind:    job.ErrorKind,
		ResultName:   job.ResultName,
		ResultMIME:   job.ResultMIME,
		ResultKey:    job.ResultKey,
		ResultSize:   job.ResultSize,
		Fallback:     job.Fallback,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
	}
}

// AppliedMigration is a row of the migration tracking table
type AppliedMigration struct {
	bun.BaseModel `bun:"table:bun_schema_migrations"`

	Version   string    `bun:"version,pk"`
	Name      string    `bun:"name,notnull,default:''"`
	AppliedAt time.Time `bun:"applied_at,notnull,default:current_timestamp"`
}
