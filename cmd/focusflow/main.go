package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"focusflow/internal/app"
	"focusflow/internal/config"

	"github.com/sevlyar/go-daemon"
)

var (
	// Define command-line flags
	configPath = flag.String("c", "", "Path to configuration file (e.g., config.yaml). Defaults to ./config.yaml, ~/.config/focusflow/config.yaml, /etc/focusflow/config.yaml")
	logPath    = flag.String("log", "", "Path to log file (optional, defaults to stderr)")
	daemonize  = flag.Bool("d", false, "Detach and run in the background")
	pidPath    = flag.String("pid", filepath.Join(os.TempDir(), "focusflow.pid"), "PID file used in daemon mode")
)

// setupLogging configures the log output destination.
func setupLogging(logFilePath string) (*os.File, error) {
	if logFilePath == "" {
		log.SetOutput(os.Stderr)
		return nil, nil
	}

	// Ensure the directory for the log file exists
	dir := filepath.Dir(logFilePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	// Open the log file for appending, create if it doesn't exist
	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", logFilePath, err)
	}

	log.SetOutput(file)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Printf("Logging to file: %s", logFilePath)
	return file, nil
}

func main() {
	// Parse the command-line flags provided by the user
	flag.Parse()

	if *daemonize {
		// The parent returns here; only the detached child continues.
		cntxt := &daemon.Context{
			PidFileName: *pidPath,
			PidFilePerm: 0644,
			WorkDir:     "./",
			Umask:       027,
		}
		child, err := cntxt.Reborn()
		if err != nil {
			log.Fatalf("FATAL: Unable to daemonize: %v", err)
		}
		if child != nil {
			fmt.Printf("focusflow started in background (pid %d)\n", child.Pid)
			return
		}
		defer cntxt.Release()
		// A detached child has no terminal, so it always logs to a file
		if *logPath == "" {
			*logPath = filepath.Join(os.TempDir(), "focusflow.log")
		}
	}

	// Set up logging based on the -log flag
	logFile, logErr := setupLogging(*logPath)
	if logErr != nil {
		// If file logging fails, log the error to stderr and continue logging to stderr
		fmt.Fprintf(os.Stderr, "Error setting up file logging: %v. Logging to stderr instead.\n", logErr)
		log.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	}
	// If a log file was successfully opened, ensure it's closed upon exit
	if logFile != nil {
		defer logFile.Close()
	}

	// Load the application configuration
	// Uses viper which checks flags, env vars, and config files (./, ~/.config/focusflow/, /etc/focusflow/)
	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// Create the main application instance
	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to create application: %v", err)
	}
	// Only a file on disk can be watched for changes
	if loader.ConfigFile() != "" {
		application.WatchConfig(loader)
	}

	// Blocks until SIGINT/SIGTERM.
	if err := application.Run(); err != nil {
		// Log the error that caused the application to exit abnormally
		log.Fatalf("FATAL: Application exited with error: %v", err)
	}

	// Application exited gracefully
	log.Println("focusflow finished successfully.")
}
