package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/automaxprocs/maxprocs"

	config "github.com/drummonds/goconvert/config"
	converter "github.com/drummonds/goconvert/converter"
	database "github.com/drummonds/goconvert/database"
	engine "github.com/drummonds/goconvert/engine"
	storage "github.com/drummonds/goconvert/storage"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	database.Logger = Logger
	config.Logger = Logger
	engine.Logger = Logger
	converter.Logger = Logger
	storage.Logger = Logger
}

// newEcho creates the echo instance with middleware and the JSON 404 handler
func newEcho(serverConfig config.ServerConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}
		if code == http.StatusNotFound {
			c.JSON(http.StatusNotFound, map[string]string{
				"error":   "Not Found",
				"message": "The requested API endpoint does not exist",
				"path":    c.Request().URL.Path,
			})
			return
		}
		e.DefaultHTTPErrorHandler(err, c)
	}

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))
	// multipart framing on top of the file itself
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", serverConfig.MaxUploadMB+1)))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				Logger.Warn("Request failed", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "error", v.Error)
				return nil
			}
			Logger.Debug("Request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	return e
}

func main() {
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))

	serverConfig, logger := config.SetupServer()
	injectGlobals(logger) //inject the logger into all of the packages

	// Show info banner if using ephemeral database
	if serverConfig.DatabaseType == "ephemeral" {
		fmt.Println("\n" + strings.Repeat("=", 50))
		fmt.Println("🚀  EPHEMERAL DATABASE MODE")
		fmt.Println(strings.Repeat("=", 50))
		fmt.Println("• Job history will be destroyed on exit")
		fmt.Println("• Perfect for testing and development")
		fmt.Println(strings.Repeat("=", 50) + "\n")
	}

	Logger.Info("Setting up database", "type", serverConfig.DatabaseType)
	db, err := database.NewRepository(serverConfig)
	if err != nil {
		Logger.Error("Failed to set up database", "error", err)
		fmt.Fprintf(os.Stderr, "Failed to set up database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	Logger.Info("Database setup complete")

	store, err := storage.NewResultStore(serverConfig)
	if err != nil {
		Logger.Error("Failed to set up result storage", "error", err)
		fmt.Fprintf(os.Stderr, "Failed to set up result storage: %v\n", err)
		os.Exit(1)
	}
	Logger.Info("Result storage ready", "store", store.Name())

	conv, err := converter.NewFromConfig(serverConfig.ConverterConfig)
	if err != nil {
		Logger.Error("Failed to set up converter", "error", err)
		fmt.Fprintf(os.Stderr, "Failed to set up converter: %v\n", err)
		os.Exit(1)
	}
	defer conv.Provider().Close()

	e := newEcho(serverConfig)
	serverHandler := engine.NewServerHandler(db, e, serverConfig, conv, store) //injecting the database into the handler for routes
	if err := serverHandler.StartupChecks(); err != nil {
		Logger.Error("Startup checks failed", "error", err)
		os.Exit(1)
	}
	Logger.Info("Startup checks complete")
	scheduler := serverHandler.InitializeSchedules() //initialize all the cron jobs
	serverHandler.RegisterRoutes()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	address := fmt.Sprintf("%s:%s", serverConfig.ListenAddrIP, serverConfig.ListenAddrPort)
	go func() {
		Logger.Info("Starting HTTP server", "address", address)
		if err := e.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Error("HTTP server stopped", "error", err)
			stop()
		}
	}()
	fmt.Printf("Ready. API available at http://%s/api\n", address)

	<-ctx.Done()
	Logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	<-scheduler.Stop().Done()
	if err := e.Shutdown(shutdownCtx); err != nil {
		Logger.Error("HTTP server shutdown failed", "error", err)
	}
	if err := serverHandler.Shutdown(shutdownCtx); err != nil {
		Logger.Error("Background jobs did not finish", "error", err)
	}
	Logger.Info("Shutdown complete")
}
