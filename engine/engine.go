package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/drummonds/goconvert/converter"
	"github.com/drummonds/goconvert/database"
	"github.com/drummonds/goconvert/storage"
)

// stepFor names the pipeline stage a progress value falls in
func stepFor(percent int) string {
	switch {
	case percent < 20:
		return "Preparing"
	case percent < 50:
		return "Decoding"
	case percent < 90:
		return "Converting"
	case percent < 100:
		return "Encoding"
	default:
		return "Storing result"
	}
}

// startJob queues the conversion of source for a job that already exists in the database
func (serverHandler *ServerHandler) startJob(job *database.Job, source converter.SourceFile, target converter.Format) {
	ctx, cancel := context.WithCancel(serverHandler.baseCtx)
	serverHandler.mu.Lock()
	serverHandler.cancels[job.ID] = cancel
	serverHandler.mu.Unlock()

	serverHandler.wg.Add(1)
	go func() {
		defer serverHandler.wg.Done()
		defer func() {
			serverHandler.mu.Lock()
			delete(serverHandler.cancels, job.ID)
			serverHandler.mu.Unlock()
			cancel()
		}()
		serverHandler.runJob(ctx, job.ID, source, target)
	}()
}

// cancelJob stops a queued or running job, reporting whether it was found
func (serverHandler *ServerHandler) cancelJob(jobID ulid.ULID) bool {
	serverHandler.mu.Lock()
	cancel, ok := serverHandler.cancels[jobID]
	serverHandler.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// runJob converts one job, waiting for a free slot first. Every exit path leaves the job in a terminal status.
func (serverHandler *ServerHandler) runJob(ctx context.Context, jobID ulid.ULID, source converter.SourceFile, target converter.Format) {
	db := serverHandler.DB

	defer func() {
		if r := recover(); r != nil {
			Logger.Error("PANIC in conversion job", "jobID", jobID.String(), "panic", r)
			if err := db.UpdateJobError(jobID, "internal", fmt.Sprintf("Conversion panicked: %v", r)); err != nil {
				Logger.Error("Failed to record job panic", "jobID", jobID.String(), "error", err)
			}
		}
	}()

	select {
	case serverHandler.slots <- struct{}{}:
		defer func() { <-serverHandler.slots }()
	case <-ctx.Done():
		serverHandler.finishCancelled(jobID)
		return
	}

	if err := db.UpdateJobStatus(jobID, database.JobStatusRunning, "Conversion started"); err != nil {
		Logger.Error("Failed to mark job running", "jobID", jobID.String(), "error", err)
	}

	lastStep := ""
	result, err := serverHandler.Converter.Convert(ctx, converter.Request{
		File:   source,
		Target: target,
		OnProgress: func(percent int) {
			step := stepFor(percent)
			if err := db.UpdateJobProgress(jobID, percent, step); err != nil {
				Logger.Warn("Failed to update job progress", "jobID", jobID.String(), "progress", percent, "error", err)
			}
			if step != lastStep {
				Logger.Debug("Job progress", "jobID", jobID.String(), "step", step, "progress", percent)
				lastStep = step
			}
		},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			serverHandler.finishCancelled(jobID)
			return
		}
		_, kind := errorResponse(err)
		Logger.Warn("Conversion job failed", "jobID", jobID.String(), "kind", kind, "error", err)
		if err := db.UpdateJobError(jobID, kind, err.Error()); err != nil {
			Logger.Error("Failed to record job error", "jobID", jobID.String(), "error", err)
		}
		return
	}

	key := storage.Key(jobID.String(), result.Filename)
	// the store write is not cancellable, a finished conversion is always kept
	if err := serverHandler.Store.Put(context.Background(), key, result.Data, result.MIMEType); err != nil {
		Logger.Error("Failed to store conversion result", "jobID", jobID.String(), "key", key, "error", err)
		if err := db.UpdateJobError(jobID, "storage", fmt.Sprintf("Failed to store result: %v", err)); err != nil {
			Logger.Error("Failed to record job error", "jobID", jobID.String(), "error", err)
		}
		return
	}

	err = db.CompleteJob(jobID, database.JobResult{
		Name:     result.Filename,
		MIMEType: result.MIMEType,
		Key:      key,
		Size:     int64(len(result.Data)),
		Fallback: string(result.Fallback),
	})
	if err != nil {
		Logger.Error("Failed to complete job", "jobID", jobID.String(), "error", err)
		return
	}
	Logger.Info("Conversion job completed", "jobID", jobID.String(), "result", result.Filename, "bytes", len(result.Data))
}

func (serverHandler *ServerHandler) finishCancelled(jobID ulid.ULID) {
	Logger.Info("Conversion job cancelled", "jobID", jobID.String())
	if err := serverHandler.DB.UpdateJobStatus(jobID, database.JobStatusCancelled, "Cancelled"); err != nil {
		Logger.Error("Failed to mark job cancelled", "jobID", jobID.String(), "error", err)
	}
}
