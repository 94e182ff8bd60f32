package engine

import (
	"fmt"
	"os"
	"strings"

	"github.com/drummonds/goconvert/config"
)

// StartupChecks performs all the checks to make sure everything works
func (serverHandler *ServerHandler) StartupChecks() error {
	if err := resultDirectoryChecks(serverHandler.ServerConfig); err != nil {
		return err
	}
	rendererChecks(serverHandler.ServerConfig)

	// nothing is running yet, so anything still active was cut off by the last shutdown
	interrupted, err := serverHandler.DB.FailActiveJobs("Interrupted by server restart")
	if err != nil {
		Logger.Error("Failed to fail interrupted jobs", "error", err)
		return err
	}
	if interrupted > 0 {
		Logger.Warn("Marked interrupted jobs as failed", "count", interrupted)
	}
	return nil
}

func rendererChecks(serverConfig config.ServerConfig) {
	if len(serverConfig.Renderers) == 0 {
		Logger.Warn("No PDF renderers configured, PDF to image conversions will fail")
		return
	}
	Logger.Info("PDF renderers will be loaded on first use", "order", strings.Join(serverConfig.Renderers, ","))
}

// resultDirectoryChecks ensures the result directory exists when results are kept on disk
func resultDirectoryChecks(serverConfig config.ServerConfig) error {
	if serverConfig.StorageType != "" && serverConfig.StorageType != "file" {
		Logger.Info("Results kept in object storage", "type", serverConfig.StorageType, "bucket", serverConfig.S3Bucket)
		return nil
	}
	if serverConfig.ResultPath == "" {
		Logger.Warn("Result path not configured")
		return nil
	}

	resultInfo, err := os.Stat(serverConfig.ResultPath)
	if err != nil {
		if os.IsNotExist(err) {
			Logger.Info("Creating result directory", "path", serverConfig.ResultPath)
			err = os.MkdirAll(serverConfig.ResultPath, 0755)
			if err != nil {
				Logger.Error("Failed to create result directory", "path", serverConfig.ResultPath, "error", err)
				return err
			}
			Logger.Info("Result directory created successfully", "path", serverConfig.ResultPath)
			return nil
		}
		Logger.Error("Error checking result directory", "path", serverConfig.ResultPath, "error", err)
		return err
	}

	if !resultInfo.IsDir() {
		Logger.Error("Result path exists but is not a directory", "path", serverConfig.ResultPath)
		return fmt.Errorf("result path is not a directory: %s", serverConfig.ResultPath)
	}

	Logger.Info("Result directory exists", "path", serverConfig.ResultPath)
	return nil
}
