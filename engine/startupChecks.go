package engine

import (
	"context"
	"fmt"
	"os"
)

// StartupChecks performs all the checks to make sure everything works
func (serverHandler *ServerHandler) StartupChecks() error {
	if err := tempDirectoryChecks(serverHandler.Store.BasePath); err != nil {
		return err
	}
	serverHandler.rasterizerChecks()
	return nil
}

// tempDirectoryChecks ensures the job base directory exists
func tempDirectoryChecks(tempPath string) error {
	if tempPath == "" {
		Logger.Warn("Temp path not configured")
		return nil
	}

	tempInfo, err := os.Stat(tempPath)
	if err != nil {
		if os.IsNotExist(err) {
			Logger.Info("Creating temp directory", "path", tempPath)
			err = os.MkdirAll(tempPath, 0755)
			if err != nil {
				Logger.Error("Failed to create temp directory", "path", tempPath, "error", err)
				return err
			}
			Logger.Info("Temp directory created successfully", "path", tempPath)
			return nil
		}
		Logger.Error("Error checking temp directory", "path", tempPath, "error", err)
		return err
	}

	if !tempInfo.IsDir() {
		Logger.Error("Temp path exists but is not a directory", "path", tempPath)
		return fmt.Errorf("temp path is not a directory: %s", tempPath)
	}

	Logger.Info("Temp directory exists", "path", tempPath)
	return nil
}

// rasterizerChecks probes the pdftoppm binary. A missing binary is not
// fatal, conversions will fail with an instructive error until installed.
func (serverHandler *ServerHandler) rasterizerChecks() {
	if serverHandler.Rasterizer.Available(context.Background(), serverHandler.ServerConfig.HealthTimeout) {
		Logger.Info("pdftoppm found and responding", "path", serverHandler.Rasterizer.BinaryPath)
		return
	}
	Logger.Warn("pdftoppm not responding, conversions will fail until poppler-utils is installed", "path", serverHandler.Rasterizer.BinaryPath)
}
