package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"

	"github.com/drummonds/goconvert/config"
	"github.com/drummonds/goconvert/converter"
	"github.com/drummonds/goconvert/database"
	"github.com/drummonds/goconvert/storage"
)

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	DB           database.Repository
	Echo         *echo.Echo
	ServerConfig config.ServerConfig
	Converter    *converter.Converter
	Store        storage.ResultStore

	baseCtx  context.Context
	stop     context.CancelFunc
	slots    chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	cancels  map[ulid.ULID]context.CancelFunc
	initOnce sync.Once
}

// NewServerHandler wires the handler and prepares the background job pool
func NewServerHandler(db database.Repository, e *echo.Echo, cfg config.ServerConfig, conv *converter.Converter, store storage.ResultStore) *ServerHandler {
	serverHandler := &ServerHandler{DB: db, Echo: e, ServerConfig: cfg, Converter: conv, Store: store}
	serverHandler.init()
	return serverHandler
}

func (serverHandler *ServerHandler) init() {
	serverHandler.initOnce.Do(func() {
		workers := serverHandler.ServerConfig.MaxConcurrentJobs
		if workers <= 0 {
			workers = 1
		}
		serverHandler.baseCtx, serverHandler.stop = context.WithCancel(context.Background())
		serverHandler.slots = make(chan struct{}, workers)
		serverHandler.cancels = make(map[ulid.ULID]context.CancelFunc)
	})
}

// RegisterRoutes adds the API routes to the handler's echo instance
func (serverHandler *ServerHandler) RegisterRoutes() {
	serverHandler.init()
	e := serverHandler.Echo

	// Conversion API routes
	e.POST("/api/convert", serverHandler.ConvertFile)
	e.GET("/api/formats", serverHandler.GetFormats)

	// Job API routes
	e.POST("/api/jobs", serverHandler.SubmitJob)
	e.GET("/api/jobs", serverHandler.GetRecentJobs)
	e.GET("/api/jobs/active", serverHandler.GetActiveJobs)
	e.GET("/api/jobs/:id", serverHandler.GetJob)
	e.GET("/api/jobs/:id/download", serverHandler.DownloadJobResult)
	e.POST("/api/jobs/:id/cancel", serverHandler.CancelJob)

	// Admin
	e.GET("/api/health", serverHandler.GetHealth)
}

// Shutdown cancels running jobs and waits for them to record their outcome
func (serverHandler *ServerHandler) Shutdown(ctx context.Context) error {
	serverHandler.init()
	serverHandler.stop()
	done := make(chan struct{})
	go func() {
		serverHandler.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// errorResponse maps a conversion failure to a status code and the kind stored on jobs
func errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, converter.ErrUnsupportedConversion):
		return http.StatusBadRequest, "unsupported"
	case errors.Is(err, converter.ErrDecode):
		return http.StatusUnprocessableEntity, "decode"
	case errors.Is(err, converter.ErrLibraryLoad):
		return http.StatusServiceUnavailable, "library"
	case errors.Is(err, converter.ErrRender):
		return http.StatusInternalServerError, "render"
	case errors.Is(err, converter.ErrEncode):
		return http.StatusInternalServerError, "encode"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func conversionErrorJSON(c echo.Context, err error) error {
	code, kind := errorResponse(err)
	return c.JSON(code, map[string]interface{}{
		"error": err.Error(),
		"kind":  kind,
	})
}

// readUpload pulls the "file" and "target" form fields out of a multipart request
func (serverHandler *ServerHandler) readUpload(c echo.Context) (converter.SourceFile, converter.Format, error) {
	target := converter.ParseFormat(c.FormValue("target"))
	if target == "" {
		return converter.SourceFile{}, "", errors.New("missing target format")
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return converter.SourceFile{}, "", fmt.Errorf("missing file: %w", err)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return converter.SourceFile{}, "", fmt.Errorf("unable to open upload: %w", err)
	}
	defer file.Close()

	limit := int64(serverHandler.ServerConfig.MaxUploadMB) << 20
	if limit <= 0 {
		limit = 50 << 20
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return converter.SourceFile{}, "", fmt.Errorf("unable to read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return converter.SourceFile{}, "", fmt.Errorf("file exceeds the %d MB upload limit", limit>>20)
	}
	if len(data) == 0 {
		return converter.SourceFile{}, "", errors.New("uploaded file is empty")
	}
	return converter.SourceFile{
		Name:     fileHeader.Filename,
		MIMEType: fileHeader.Header.Get(echo.HeaderContentType),
		Data:     data,
	}, target, nil
}

func attachment(c echo.Context, filename string) {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
}

// ConvertFile converts an uploaded file and replies with the result
// @Summary Convert a file
// @Description Convert an uploaded image or PDF and return the converted file as an attachment
// @Tags Conversion
// @Accept multipart/form-data
// @Produce octet-stream
// @Param file formData file true "Source image or PDF"
// @Param target formData string true "Target format (jpg, png, webp, bmp, gif, pdf)"
// @Success 200 {file} binary "Converted file"
// @Failure 400 {object} map[string]interface{} "Bad request or unsupported conversion"
// @Failure 422 {object} map[string]interface{} "Source could not be decoded"
// @Failure 503 {object} map[string]interface{} "PDF renderer unavailable"
// @Failure 500 {object} map[string]interface{} "Render or encode failure"
// @Router /convert [post]
func (serverHandler *ServerHandler) ConvertFile(c echo.Context) error {
	source, target, err := serverHandler.readUpload(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
		})
	}

	// synchronous conversions share the job slots
	ctx := c.Request().Context()
	select {
	case serverHandler.slots <- struct{}{}:
		defer func() { <-serverHandler.slots }()
	case <-ctx.Done():
		return conversionErrorJSON(c, ctx.Err())
	}

	result, err := serverHandler.Converter.Convert(ctx, converter.Request{File: source, Target: target})
	if err != nil {
		Logger.Warn("Conversion request failed", "file", source.Name, "target", target, "error", err)
		return conversionErrorJSON(c, err)
	}

	attachment(c, result.Filename)
	if result.Fallback != converter.FallbackNone {
		c.Response().Header().Set("X-Conversion-Fallback", string(result.Fallback))
	}
	return c.Blob(http.StatusOK, result.MIMEType, result.Data)
}

// GetFormats lists the conversions the service advertises
// @Summary List supported formats
// @Description Retrieve the source formats and, for each, the targets it can be converted to. With source and target set, report whether that one pair is advertised.
// @Tags Conversion
// @Produce json
// @Param source query string false "Source format to check"
// @Param target query string false "Target format to check"
// @Success 200 {object} map[string]interface{} "Supported conversions"
// @Failure 400 {object} map[string]interface{} "Only one of source and target given"
// @Router /formats [get]
func (serverHandler *ServerHandler) GetFormats(c echo.Context) error {
	sourceParam, targetParam := c.QueryParam("source"), c.QueryParam("target")
	if sourceParam != "" || targetParam != "" {
		if sourceParam == "" || targetParam == "" {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error": "source and target must be given together",
			})
		}
		source, target := converter.ParseFormat(sourceParam), converter.ParseFormat(targetParam)
		return c.JSON(http.StatusOK, map[string]interface{}{
			"source":    source,
			"target":    target,
			"supported": converter.Supports(source, target),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"sources":     converter.SourceFormats(),
		"conversions": converter.SupportedConversions,
	})
}

// GetHealth reports the service configuration
// @Summary Health check
// @Description Report the configured renderers, storage and database
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{} "Service status"
// @Router /health [get]
func (serverHandler *ServerHandler) GetHealth(c echo.Context) error {
	opts := serverHandler.Converter.Options()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"renderers":     serverHandler.ServerConfig.Renderers,
		"scale":         opts.Scale,
		"renderTimeout": opts.RenderTimeout.String(),
		"placeholder":   opts.AllowPlaceholder,
		"storage":       serverHandler.Store.Name(),
		"databaseType":  serverHandler.ServerConfig.DatabaseType,
	})
}
