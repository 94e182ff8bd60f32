package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// ServerConfig contains all of the server settings
type ServerConfig struct {
	ListenAddrIP     string
	ListenAddrPort   string
	DatabaseType     string
	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string `json:"-"`
	DatabaseDbname   string
	DatabaseSslmode  string
	DatabaseVerbose  bool
	StorageType      string // file or s3
	ResultPath       string // absolute path for the file store
	S3Endpoint       string
	S3AccessKey      string
	S3SecretKey      string `json:"-"`
	S3Bucket         string
	S3Region         string
	S3UseSSL         bool
	ConverterConfig
	JobRetentionHours      int
	CleanupIntervalMinutes int
	MaxUploadMB            int
	MaxConcurrentJobs      int
}

// ConverterConfig holds the conversion pipeline settings shared by the server and the CLI
type ConverterConfig struct {
	Renderers        []string // PDF renderer backends in the order they are tried
	RenderScale      float64
	RenderTimeout    time.Duration
	JPEGQuality      int
	PageSize         string  // image to PDF page, e.g. A4 or Letter
	PageMarginMM     float64 // image to PDF margin
	AllowPlaceholder bool
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolVal
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatVal
}

// getEnvDuration accepts Go durations ("15s") or plain seconds ("15")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return SplitList(value)
}

// SplitList splits "a, b,,c" into [a b c]
func SplitList(value string) []string {
	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}

// LoadEnvFiles loads .env and config.env (silently ignored if they don't exist)
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")
}

// LoadConverterConfig reads the conversion settings from the environment
func LoadConverterConfig() ConverterConfig {
	return ConverterConfig{
		Renderers:        getEnvList("PDF_RENDERERS", []string{"pdfium", "fitz"}),
		RenderScale:      getEnvFloat("RENDER_SCALE", 2.0),
		RenderTimeout:    getEnvDuration("RENDER_TIMEOUT", 10*time.Second),
		JPEGQuality:      getEnvInt("JPEG_QUALITY", 90),
		PageSize:         getEnv("PDF_PAGE_SIZE", "A4"),
		PageMarginMM:     getEnvFloat("PDF_PAGE_MARGIN_MM", 10),
		AllowPlaceholder: getEnvBool("ALLOW_PLACEHOLDER", false),
	}
}

// LoadServerConfig reads the server settings from the environment
func LoadServerConfig() (ServerConfig, error) {
	serverConfigLive := ServerConfig{}

	// Server configuration
	serverConfigLive.ListenAddrPort = getEnv("SERVER_PORT", "8000")
	serverConfigLive.ListenAddrIP = getEnv("SERVER_ADDR", "")

	// Database configuration
	serverConfigLive.DatabaseType = getEnv("DATABASE_TYPE", "sqlite")
	serverConfigLive.DatabaseHost = getEnv("DATABASE_HOST", "localhost")
	serverConfigLive.DatabasePort = getEnv("DATABASE_PORT", "5432")
	serverConfigLive.DatabaseUser = getEnv("DATABASE_USER", "goconvert")
	serverConfigLive.DatabasePassword = getEnv("DATABASE_PASSWORD", "")
	serverConfigLive.DatabaseDbname = getEnv("DATABASE_NAME", "goconvert")
	serverConfigLive.DatabaseSslmode = getEnv("DATABASE_SSLMODE", "disable")
	serverConfigLive.DatabaseVerbose = getEnvBool("DATABASE_VERBOSE", false)

	// Result storage configuration
	serverConfigLive.StorageType = strings.ToLower(getEnv("STORAGE_TYPE", "file"))
	resultPath, err := filepath.Abs(filepath.ToSlash(getEnv("RESULT_PATH", "results")))
	if err != nil {
		return serverConfigLive, fmt.Errorf("failed creating absolute path for result directory: %w", err)
	}
	serverConfigLive.ResultPath = resultPath
	serverConfigLive.S3Endpoint = getEnv("S3_ENDPOINT", "")
	serverConfigLive.S3AccessKey = getEnv("S3_ACCESS_KEY", "")
	serverConfigLive.S3SecretKey = getEnv("S3_SECRET_KEY", "")
	serverConfigLive.S3Bucket = getEnv("S3_BUCKET", "")
	serverConfigLive.S3Region = getEnv("S3_REGION", "")
	serverConfigLive.S3UseSSL = getEnvBool("S3_USE_SSL", true)

	serverConfigLive.ConverterConfig = LoadConverterConfig()

	// Jobs
	serverConfigLive.JobRetentionHours = getEnvInt("JOB_RETENTION_HOURS", 24)
	serverConfigLive.CleanupIntervalMinutes = getEnvInt("CLEANUP_INTERVAL_MINUTES", 30)
	serverConfigLive.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", 50)
	serverConfigLive.MaxConcurrentJobs = getEnvInt("MAX_CONCURRENT_JOBS", 4)

	if err := serverConfigLive.Validate(); err != nil {
		return serverConfigLive, err
	}
	return serverConfigLive, nil
}

// Validate rejects settings the server cannot run with
func (c ServerConfig) Validate() error {
	switch c.StorageType {
	case "file", "s3":
	default:
		return fmt.Errorf("STORAGE_TYPE must be file or s3, got %q", c.StorageType)
	}
	if c.StorageType == "s3" && (c.S3Endpoint == "" || c.S3Bucket == "") {
		return fmt.Errorf("STORAGE_TYPE=s3 needs S3_ENDPOINT and S3_BUCKET")
	}
	if len(c.Renderers) == 0 {
		return fmt.Errorf("PDF_RENDERERS must name at least one renderer")
	}
	if c.RenderScale <= 0 || c.RenderScale > 10 {
		return fmt.Errorf("RENDER_SCALE must be between 0 and 10, got %g", c.RenderScale)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be between 1 and 100, got %d", c.JPEGQuality)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	if c.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be positive, got %d", c.MaxConcurrentJobs)
	}
	return nil
}

// SetupServer loads configuration and returns ServerConfig and Logger
func SetupServer() (ServerConfig, *slog.Logger) {
	LoadEnvFiles()

	logger := setupLogging()
	Logger = logger

	serverConfigLive, err := LoadServerConfig()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Database configuration loaded", "type", serverConfigLive.DatabaseType)
	logger.Info("Result storage configured", "type", serverConfigLive.StorageType, "path", serverConfigLive.ResultPath, "bucket", serverConfigLive.S3Bucket)
	logger.Info("Converter configured",
		"renderers", strings.Join(serverConfigLive.Renderers, ","),
		"scale", serverConfigLive.RenderScale,
		"timeout", serverConfigLive.RenderTimeout,
		"placeholder", serverConfigLive.AllowPlaceholder)

	fmt.Println("\n========================================")
	fmt.Println("   goconvert - Image and PDF converter")
	fmt.Println("========================================")
	fmt.Printf("Server will start on: %s:%s\n", serverConfigLive.ListenAddrIP, serverConfigLive.ListenAddrPort)
	if serverConfigLive.ListenAddrIP == "" {
		fmt.Println("(Listening on all network interfaces)")
	}
	if getEnv("LOG_OUTPUT", "file") != "stdout" {
		fmt.Printf("Detailed logs: %s\n", getEnv("LOG_FILE", "goconvert.log"))
	}
	fmt.Println("Initializing...")

	return serverConfigLive, logger
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to debug
func ParseLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// NewLogger creates a text logger writing to w
func NewLogger(w io.Writer, logLevel string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(logLevel)}))
}

// setupLogging configures the application logger
func setupLogging() *slog.Logger {
	logLevel := getEnv("LOG_LEVEL", "debug")

	logOutput := getEnv("LOG_OUTPUT", "file")
	var logWriter io.Writer

	if logOutput == "stdout" {
		logWriter = os.Stdout
	} else {
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "goconvert.log")))
		if err != nil {
			fmt.Printf("Error creating log file path: %v\n", err)
			logWriter = os.Stdout
		} else {
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Printf("Failed to open log file: %v\n", err)
				logWriter = os.Stdout
			} else {
				logWriter = logFile
				fmt.Println("Logging to file: ", logPath)
			}
		}
	}

	return NewLogger(logWriter, logLevel)
}
