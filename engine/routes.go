package engine

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/drummonds/gopdf2img/config"
	"github.com/drummonds/gopdf2img/jobstore"
	"github.com/drummonds/gopdf2img/rasterize"
)

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	Echo         *echo.Echo
	ServerConfig config.ServerConfig
	Store        *jobstore.Store
	Rasterizer   *rasterize.Rasterizer
}

// ConversionResponse is returned after a successful conversion
type ConversionResponse struct {
	OK           bool     `json:"ok"`
	JobID        string   `json:"job_id"`
	Format       string   `json:"format"`
	DPI          int      `json:"dpi"`
	Count        int      `json:"count"`
	Files        []string `json:"files"`
	DownloadBase string   `json:"download_base"`
}

// errorJSON sends the structured failure payload every endpoint uses
func errorJSON(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]interface{}{
		"ok":    false,
		"error": message,
	})
}

// contentTypeFor maps a stored filename to the response content type
func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	return "application/octet-stream"
}

// ConvertPDF accepts an uploaded PDF, rasterizes every page and returns the
// job id plus the generated filenames
// @Summary Convert a PDF into page images
// @Description Rasterize each page of an uploaded PDF into an image file, stored under a fresh job id
// @Tags Conversion
// @Accept multipart/form-data
// @Produce json
// @Param pdf formData file true "PDF file to convert"
// @Param fmt query string false "Output image format (png or jpeg, default png)"
// @Param dpi query int false "Resolution in DPI, clamped to 72-600 (default 300)"
// @Success 200 {object} ConversionResponse "Conversion result with download links"
// @Failure 400 {object} map[string]interface{} "Missing or non-PDF upload"
// @Failure 500 {object} map[string]interface{} "Conversion failure"
// @Router /pdf-to-images [post]
func (serverHandler *ServerHandler) ConvertPDF(c echo.Context) error {
	format := rasterize.FormatPNG
	if fmtParam := c.QueryParam("fmt"); fmtParam != "" {
		parsed, err := rasterize.ParseFormat(fmtParam)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "Invalid format, must be png or jpeg")
		}
		format = parsed
	}

	dpi := 300
	if dpiParam := c.QueryParam("dpi"); dpiParam != "" {
		if parsed, err := strconv.Atoi(dpiParam); err == nil {
			dpi = parsed
		}
	}
	dpi = rasterize.ClampDPI(dpi)

	fileHeader, err := c.FormFile("pdf")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "No PDF file provided")
	}
	if fileHeader.Filename == "" {
		return errorJSON(c, http.StatusBadRequest, "No filename provided")
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pdf") {
		return errorJSON(c, http.StatusBadRequest, "File must be a PDF")
	}

	upload, err := fileHeader.Open()
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, fmt.Sprintf("Server error: %v", err))
	}
	defer upload.Close()
	content, err := io.ReadAll(upload)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, fmt.Sprintf("Server error: %v", err))
	}

	jobID, err := serverHandler.Store.CreateJob()
	if err != nil {
		Logger.Error("Unable to create job directory", "error", err)
		return errorJSON(c, http.StatusInternalServerError, fmt.Sprintf("Server error: %v", err))
	}

	inputPath, err := serverHandler.Store.WriteInput(jobID, content)
	if err != nil {
		Logger.Error("Unable to persist uploaded document", "jobID", jobID, "error", err)
		serverHandler.Store.Remove(jobID)
		return errorJSON(c, http.StatusInternalServerError, fmt.Sprintf("Server error: %v", err))
	}

	Logger.Info("Starting conversion", "jobID", jobID, "file", fileHeader.Filename, "format", format, "dpi", dpi)

	jobDir := serverHandler.Store.JobDir(jobID)
	files, err := serverHandler.Rasterizer.Convert(c.Request().Context(), inputPath, jobDir, format, dpi)
	if err != nil {
		Logger.Error("Conversion failed", "jobID", jobID, "error", err)
		serverHandler.Store.Remove(jobID)
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	// The input document is only needed for the conversion itself
	if err := serverHandler.Store.RemoveInput(jobID); err != nil {
		Logger.Error("Unable to remove input document", "jobID", jobID, "error", err)
		serverHandler.Store.Remove(jobID)
		return errorJSON(c, http.StatusInternalServerError, fmt.Sprintf("Server error: %v", err))
	}

	Logger.Info("Conversion complete", "jobID", jobID, "pages", len(files))

	return c.JSON(http.StatusOK, ConversionResponse{
		OK:           true,
		JobID:        jobID,
		Format:       string(format),
		DPI:          dpi,
		Count:        len(files),
		Files:        files,
		DownloadBase: "/download/" + jobID + "/",
	})
}

// DownloadImage streams a stored page image back to the caller
// @Summary Download a converted page image
// @Description Stream one page image from a conversion job
// @Tags Conversion
// @Produce png
// @Param job_id path string true "Job id from the conversion response"
// @Param filename path string true "Page image filename"
// @Success 200 {file} binary "Image file"
// @Failure 400 {object} map[string]interface{} "Malformed job id or filename"
// @Failure 404 {object} map[string]interface{} "Unknown job or file"
// @Router /download/{job_id}/{filename} [get]
func (serverHandler *ServerHandler) DownloadImage(c echo.Context) error {
	jobID := c.Param("job_id")
	filename := c.Param("filename")

	if !jobstore.ValidateID(jobID) {
		return errorJSON(c, http.StatusBadRequest, "Invalid job_id format")
	}
	if !jobstore.ValidateFilename(filename) {
		return errorJSON(c, http.StatusBadRequest, "Invalid filename")
	}

	filePath := serverHandler.Store.FilePath(jobID, filename)
	info, err := os.Stat(filePath)
	if err != nil || !info.Mode().IsRegular() {
		return errorJSON(c, http.StatusNotFound, "File not found")
	}

	file, err := os.Open(filePath)
	if err != nil {
		Logger.Error("Unable to open stored image", "path", filePath, "error", err)
		return errorJSON(c, http.StatusInternalServerError, fmt.Sprintf("Server error: %v", err))
	}
	defer file.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Stream(http.StatusOK, contentTypeFor(filename), file)
}

// CleanupJob removes a job directory and everything in it
// @Summary Delete a conversion job
// @Description Remove a job directory and all of its page images
// @Tags Conversion
// @Produce json
// @Param job_id path string true "Job id from the conversion response"
// @Success 200 {object} map[string]interface{} "Job removed"
// @Failure 400 {object} map[string]interface{} "Malformed job id"
// @Failure 404 {object} map[string]interface{} "Unknown job"
// @Router /cleanup/{job_id} [delete]
func (serverHandler *ServerHandler) CleanupJob(c echo.Context) error {
	jobID := c.Param("job_id")

	if !jobstore.ValidateID(jobID) {
		return errorJSON(c, http.StatusBadRequest, "Invalid job_id format")
	}
	if !serverHandler.Store.Exists(jobID) {
		return errorJSON(c, http.StatusNotFound, "Job not found")
	}
	if err := serverHandler.Store.Remove(jobID); err != nil {
		Logger.Error("Unable to remove job directory", "jobID", jobID, "error", err)
		return errorJSON(c, http.StatusInternalServerError, fmt.Sprintf("Server error: %v", err))
	}

	Logger.Info("Job cleaned up", "jobID", jobID)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":      true,
		"message": fmt.Sprintf("Job %s cleaned up", jobID),
	})
}

// Health reports whether the rasterizer binary is reachable
// @Summary Service health check
// @Description Probe the pdftoppm binary with a short version query
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{} "Health status"
// @Router /health [get]
func (serverHandler *ServerHandler) Health(c echo.Context) error {
	available := serverHandler.Rasterizer.Available(c.Request().Context(), serverHandler.ServerConfig.HealthTimeout)

	status := "healthy"
	if !available {
		status = "degraded"
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":            status,
		"poppler_available": available,
		"temp_dir":          serverHandler.ServerConfig.TempPath,
	})
}
