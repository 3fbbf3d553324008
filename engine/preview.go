package engine

import (
	"net/http"
	"os"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/labstack/echo/v4"

	"github.com/drummonds/gopdf2img/jobstore"
)

const (
	defaultPreviewWidth = 512
	minPreviewWidth     = 16
	maxPreviewWidth     = 2048
)

// clampPreviewWidth clamps the requested box size, same policy as DPI
func clampPreviewWidth(width int) int {
	if width < minPreviewWidth {
		return minPreviewWidth
	}
	if width > maxPreviewWidth {
		return maxPreviewWidth
	}
	return width
}

// PreviewImage serves a downscaled copy of a stored page image. The page
// was already rasterized by pdftoppm; this only resizes the stored file.
// @Summary Preview a converted page image
// @Description Stream a downscaled PNG preview of one page image
// @Tags Conversion
// @Produce png
// @Param job_id path string true "Job id from the conversion response"
// @Param filename path string true "Page image filename"
// @Param width query int false "Preview bounding box in pixels, clamped to 16-2048 (default 512)"
// @Success 200 {file} binary "PNG preview"
// @Failure 400 {object} map[string]interface{} "Malformed job id or filename"
// @Failure 404 {object} map[string]interface{} "Unknown job or file"
// @Router /preview/{job_id}/{filename} [get]
func (serverHandler *ServerHandler) PreviewImage(c echo.Context) error {
	jobID := c.Param("job_id")
	filename := c.Param("filename")

	if !jobstore.ValidateID(jobID) {
		return errorJSON(c, http.StatusBadRequest, "Invalid job_id format")
	}
	if !jobstore.ValidateFilename(filename) {
		return errorJSON(c, http.StatusBadRequest, "Invalid filename")
	}

	width := defaultPreviewWidth
	if widthParam := c.QueryParam("width"); widthParam != "" {
		if parsed, err := strconv.Atoi(widthParam); err == nil {
			width = parsed
		}
	}
	width = clampPreviewWidth(width)

	filePath := serverHandler.Store.FilePath(jobID, filename)
	info, err := os.Stat(filePath)
	if err != nil || !info.Mode().IsRegular() {
		return errorJSON(c, http.StatusNotFound, "File not found")
	}

	src, err := imaging.Open(filePath)
	if err != nil {
		Logger.Warn("Stored file is not a previewable image", "path", filePath, "error", err)
		return errorJSON(c, http.StatusBadRequest, "File is not a previewable image")
	}

	// Fit never upscales, small pages come back at their stored size
	preview := imaging.Fit(src, width, width, imaging.Lanczos)

	c.Response().Header().Set(echo.HeaderContentType, "image/png")
	c.Response().WriteHeader(http.StatusOK)
	return imaging.Encode(c.Response(), preview, imaging.PNG)
}
