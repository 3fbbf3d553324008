package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	config "github.com/drummonds/gopdf2img/config"
	engine "github.com/drummonds/gopdf2img/engine"
	jobstore "github.com/drummonds/gopdf2img/jobstore"
	rasterize "github.com/drummonds/gopdf2img/rasterize"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// apiErrorHandler keeps unknown routes on the structured {ok, error} payload
func apiErrorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}

		if code == http.StatusNotFound {
			c.JSON(http.StatusNotFound, map[string]interface{}{
				"ok":    false,
				"error": "Not Found",
				"path":  c.Request().URL.Path,
			})
			return
		}

		// For other errors, use default handler
		e.DefaultHTTPErrorHandler(err, c)
	}
}

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	config.Logger = Logger
	engine.Logger = Logger
	jobstore.Logger = Logger
	rasterize.Logger = Logger
}

// @title gopdf2img API
// @version 1.0
// @description Convert PDF pages to images for OCR processing
// @description Rendering is delegated to Poppler's pdftoppm; this service handles upload, job storage and download

// @contact.name API Support
// @contact.url https://github.com/drummonds/gopdf2img

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8000
// @BasePath /
// @schemes http https

// @tag.name Conversion
// @tag.description PDF conversion, download and cleanup operations

// @tag.name Health
// @tag.description Service health check

func main() {
	// Parse command-line flags
	port := flag.String("port", "", "Port to run the server on (overrides SERVER_PORT)")
	flag.Parse()

	serverConfig, logger := config.SetupServer()
	injectGlobals(logger) //inject the logger into all of the packages

	// Setup the filesystem job store
	store, err := jobstore.NewStore(serverConfig.TempPath)
	if err != nil {
		Logger.Error("Unable to create job store", "path", serverConfig.TempPath, "error", err)
		os.Exit(1)
	}

	rasterizer := rasterize.New(serverConfig.PdftoppmPath, serverConfig.ConvertTimeout)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Custom 404 handler so unknown routes get the same structured payload
	e.HTTPErrorHandler = apiErrorHandler(e)

	serverHandler := engine.ServerHandler{
		Echo:         e,
		ServerConfig: serverConfig,
		Store:        store,
		Rasterizer:   rasterizer,
	}

	Logger.Info("Initializing services...")
	serverHandler.InitializeSchedules() //start the job reaper if configured
	if err := serverHandler.StartupChecks(); err != nil {
		Logger.Error("Startup checks failed", "error", err)
		os.Exit(1)
	}
	Logger.Info("Services initialized")

	// CORS configuration - allow any origin, this API carries no credentials
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	// Request logging
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "method=${method}, uri=${uri}, status=${status}, latency=${latency_human}\n",
	}))

	// Cap uploads well before they reach the orchestrator
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", serverConfig.MaxUploadMB)))

	Logger.Info("Setting up API routes...")

	e.POST("/pdf-to-images", serverHandler.ConvertPDF)
	e.GET("/download/:job_id/:filename", serverHandler.DownloadImage)
	e.GET("/preview/:job_id/:filename", serverHandler.PreviewImage)
	e.DELETE("/cleanup/:job_id", serverHandler.CleanupJob)
	e.GET("/health", serverHandler.Health)

	// Override port if specified via flag
	if *port != "" {
		serverConfig.ListenAddrPort = *port
	}

	// Start server
	addr := fmt.Sprintf("%s:%s", serverConfig.ListenAddrIP, serverConfig.ListenAddrPort)
	Logger.Info("Starting PDF to Images API Server", "address", addr)
	fmt.Printf("\nServer running on %s\n", addr)
	fmt.Printf("Health check: http://%s/health\n\n", addr)

	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		Logger.Error("Server failed to start", "error", err)
		os.Exit(1)
	}
}
