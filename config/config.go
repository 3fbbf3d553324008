package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// ServerConfig contains all of the server settings
type ServerConfig struct {
	ListenAddrIP   string
	ListenAddrPort string
	TempPath       string // base directory holding one subdirectory per job
	PdftoppmPath   string // rasterizer binary, bare names are resolved via PATH
	ConvertTimeout time.Duration
	HealthTimeout  time.Duration
	MaxUploadMB    int
	JobMaxAge      time.Duration // 0 disables the reaper
	ReapInterval   time.Duration
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
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

// SetupServer loads configuration and returns ServerConfig and Logger
func SetupServer() (ServerConfig, *slog.Logger) {
	serverConfigLive := ServerConfig{}

	// Load .env file (silently ignore if doesn't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")

	logger := setupLogging()
	Logger = logger

	// Server configuration
	serverConfigLive.ListenAddrPort = getEnv("SERVER_PORT", "8000")
	serverConfigLive.ListenAddrIP = getEnv("SERVER_ADDR", "")

	// Job storage configuration
	tempDir := filepath.ToSlash(getEnv("TEMP_PATH", "/tmp/pdf2img"))
	tempDirAbs, err := filepath.Abs(tempDir)
	if err != nil {
		logger.Error("Failed creating absolute path for temp directory", "error", err)
	}
	serverConfigLive.TempPath = tempDirAbs

	// Rasterizer configuration
	pdftoppmPath := getEnv("PDFTOPPM_PATH", "pdftoppm")
	logger.Info("Checking pdftoppm executable path...")
	if err := checkExecutables(pdftoppmPath, logger); err == nil {
		logger.Info("pdftoppm found and validated, conversions enabled", "path", pdftoppmPath)
	} else {
		logger.Warn("pdftoppm executable not found, conversions will fail until poppler-utils is installed", "path", pdftoppmPath, "error", err)
	}
	serverConfigLive.PdftoppmPath = pdftoppmPath

	serverConfigLive.ConvertTimeout = time.Duration(getEnvInt("CONVERT_TIMEOUT_SECONDS", 300)) * time.Second
	serverConfigLive.HealthTimeout = time.Duration(getEnvInt("HEALTH_TIMEOUT_SECONDS", 5)) * time.Second
	serverConfigLive.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", 50)

	// Reaper configuration, disabled unless a max age is set
	serverConfigLive.JobMaxAge = time.Duration(getEnvInt("JOB_MAX_AGE_MINUTES", 0)) * time.Minute
	serverConfigLive.ReapInterval = time.Duration(getEnvInt("CLEANUP_INTERVAL_MINUTES", 10)) * time.Minute

	fmt.Println("\n========================================")
	fmt.Println("   gopdf2img - PDF to Images API")
	fmt.Println("========================================")
	fmt.Printf("Server will start on: %s:%s\n", serverConfigLive.ListenAddrIP, serverConfigLive.ListenAddrPort)
	if serverConfigLive.ListenAddrIP == "" {
		fmt.Println("(Listening on all network interfaces)")
	}
	fmt.Printf("Job storage: %s\n", serverConfigLive.TempPath)
	fmt.Println("Initializing...")

	return serverConfigLive, logger
}

// setupLogging configures the application logger
func setupLogging() *slog.Logger {
	logLevel := getEnv("LOG_LEVEL", "info")
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOptions := &slog.HandlerOptions{Level: level}

	logOutput := getEnv("LOG_OUTPUT", "stdout")
	var logWriter io.Writer

	if logOutput == "stdout" {
		logWriter = os.Stdout
	} else {
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "gopdf2img.log")))
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

	handler := slog.NewTextHandler(logWriter, handlerOptions)
	return slog.New(handler)
}

// checkExecutables verifies that the rasterizer executable can be resolved
func checkExecutables(pdftoppmPath string, logger *slog.Logger) error {
	_, err := exec.LookPath(pdftoppmPath)
	if err != nil {
		logger.Debug("Cannot find pdftoppm executable", "path", pdftoppmPath)
		return err
	}
	logger.Debug("pdftoppm executable found", "path", pdftoppmPath)
	return nil
}
