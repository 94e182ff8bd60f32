package engine

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"

	"github.com/drummonds/goconvert/converter"
	"github.com/drummonds/goconvert/database"
	"github.com/drummonds/goconvert/storage"
)

// SubmitJob accepts an upload and converts it in the background
// @Summary Submit a conversion job
// @Description Upload a file and convert it asynchronously, progress is reported on the job
// @Tags Jobs
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Source image or PDF"
// @Param target formData string true "Target format (jpg, png, webp, bmp, gif, pdf)"
// @Success 202 {object} database.Job "Queued job"
// @Failure 400 {object} map[string]interface{} "Bad request or unsupported conversion"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /jobs [post]
func (serverHandler *ServerHandler) SubmitJob(c echo.Context) error {
	source, target, err := serverHandler.readUpload(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
		})
	}

	sourceFormat, err := converter.Check(source, target)
	if err != nil {
		return conversionErrorJSON(c, err)
	}

	job, err := serverHandler.DB.CreateJob(source.Name, string(sourceFormat), string(target))
	if err != nil {
		Logger.Error("Failed to create conversion job", "file", source.Name, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to create job",
		})
	}
	Logger.Info("Conversion job queued", "jobID", job.ID.String(), "file", source.Name, "source", sourceFormat, "target", target)

	serverHandler.startJob(job, source, target)
	return c.JSON(http.StatusAccepted, job)
}

func parseJobID(c echo.Context) (ulid.ULID, error) {
	return ulid.Parse(c.Param("id"))
}

// GetJob retrieves a job by ID
// @Summary Get job by ID
// @Description Retrieve details of a specific job by its ID
// @Tags Jobs
// @Accept json
// @Produce json
// @Param id path string true "Job ID (ULID)"
// @Success 200 {object} database.Job "Job details"
// @Failure 400 {object} map[string]interface{} "Invalid job ID"
// @Failure 404 {object} map[string]interface{} "Job not found"
// @Router /jobs/{id} [get]
func (serverHandler *ServerHandler) GetJob(c echo.Context) error {
	jobID, err := parseJobID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid job ID format",
		})
	}

	job, err := serverHandler.DB.GetJob(jobID)
	if err != nil {
		if errors.Is(err, database.ErrJobNotFound) {
			return c.JSON(http.StatusNotFound, map[string]interface{}{
				"error": "Job not found",
			})
		}
		Logger.Error("Failed to get job", "jobID", jobID.String(), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve job",
		})
	}

	return c.JSON(http.StatusOK, job)
}

// GetRecentJobs retrieves recent jobs with pagination
// @Summary Get recent jobs
// @Description Retrieve a list of recent jobs with pagination
// @Tags Jobs
// @Accept json
// @Produce json
// @Param limit query int false "Number of jobs to return (default: 20)"
// @Param offset query int false "Offset for pagination (default: 0)"
// @Success 200 {array} database.Job "List of jobs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /jobs [get]
func (serverHandler *ServerHandler) GetRecentJobs(c echo.Context) error {
	limit := 20
	offset := 0

	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	jobs, err := serverHandler.DB.GetRecentJobs(limit, offset)
	if err != nil {
		Logger.Error("Failed to get recent jobs", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve jobs",
		})
	}

	if jobs == nil {
		jobs = []database.Job{}
	}

	return c.JSON(http.StatusOK, jobs)
}

// GetActiveJobs retrieves all pending or running jobs
// @Summary Get active jobs
// @Description Retrieve all jobs that are currently pending or running
// @Tags Jobs
// @Accept json
// @Produce json
// @Success 200 {array} database.Job "List of active jobs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /jobs/active [get]
func (serverHandler *ServerHandler) GetActiveJobs(c echo.Context) error {
	jobs, err := serverHandler.DB.GetActiveJobs()
	if err != nil {
		Logger.Error("Failed to get active jobs", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve active jobs",
		})
	}

	if jobs == nil {
		jobs = []database.Job{}
	}

	return c.JSON(http.StatusOK, jobs)
}

// DownloadJobResult streams the converted file of a completed job
// @Summary Download a job result
// @Description Download the converted file produced by a completed job
// @Tags Jobs
// @Produce octet-stream
// @Param id path string true "Job ID (ULID)"
// @Success 200 {file} binary "Converted file"
// @Failure 400 {object} map[string]interface{} "Invalid job ID"
// @Failure 404 {object} map[string]interface{} "Job or result not found"
// @Failure 409 {object} map[string]interface{} "Job has not completed"
// @Router /jobs/{id}/download [get]
func (serverHandler *ServerHandler) DownloadJobResult(c echo.Context) error {
	jobID, err := parseJobID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid job ID format",
		})
	}

	job, err := serverHandler.DB.GetJob(jobID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "Job not found",
		})
	}
	if job.Status != database.JobStatusCompleted {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "Job has not completed",
			"status": job.Status,
		})
	}

	reader, err := serverHandler.Store.Open(c.Request().Context(), job.ResultKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]interface{}{
				"error": "Result is no longer available",
			})
		}
		Logger.Error("Failed to open job result", "jobID", jobID.String(), "key", job.ResultKey, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to read result",
		})
	}
	defer reader.Close()

	attachment(c, job.ResultName)
	return c.Stream(http.StatusOK, job.ResultMIME, reader)
}

// CancelJob stops a pending or running job
// @Summary Cancel a job
// @Description Cancel a conversion job that has not finished yet
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID (ULID)"
// @Success 202 {object} map[string]interface{} "Cancellation requested"
// @Failure 400 {object} map[string]interface{} "Invalid job ID"
// @Failure 404 {object} map[string]interface{} "Job not found"
// @Failure 409 {object} map[string]interface{} "Job already finished"
// @Router /jobs/{id}/cancel [post]
func (serverHandler *ServerHandler) CancelJob(c echo.Context) error {
	jobID, err := parseJobID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid job ID format",
		})
	}

	job, err := serverHandler.DB.GetJob(jobID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "Job not found",
		})
	}
	if job.Status.Finished() || !serverHandler.cancelJob(jobID) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "Job has already finished",
			"status": job.Status,
		})
	}

	Logger.Info("Job cancellation requested", "jobID", jobID.String())
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Cancellation requested",
		"jobId":   jobID.String(),
	})
}
