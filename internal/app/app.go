package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"focusflow/internal/api"
	"focusflow/internal/clock"
	"focusflow/internal/config"
	"focusflow/internal/event"
	"focusflow/internal/ipc"
	"focusflow/internal/models"
	"focusflow/internal/plan"
	"focusflow/internal/session"
	"focusflow/internal/storage"

	sqlitestore "focusflow/internal/storage/sqlite"

	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"
)

const (
	commandTimeout  = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

type App struct {
	cfg     *config.Config
	cfgMu   sync.RWMutex
	storage storage.Storage
	session *session.Controller
	planner *plan.Generator
	// --- Socket Handling ---
	socketPath string
	listener   *net.UnixListener
	httpServer *http.Server

	// Controller -> app updates
	updates chan interface{}

	wg     conc.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	// Write failures reported by the controller since start
	storageFailures int
	statusMutex     sync.RWMutex
}

func NewApp(cfg *config.Config) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:        cfg,
		updates:    make(chan interface{}, 64),
		socketPath: cfg.SocketPath,
		ctx:        ctx,
		cancel:     cancel,
	}
	if a.socketPath == "" {
		a.socketPath = ipc.DefaultSocketPath
	}

	// Initialize Storage
	a.storage = sqlitestore.NewSQLiteStore(cfg.DatabasePath)
	if err := a.storage.Init(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Initialize the session controller, which owns the countdown
	a.session = session.NewController(session.Options{
		OwnerID:           cfg.OwnerID,
		Tasks:             a.storage,
		Intervals:         a.storage,
		Clock:             clock.NewTicker(cfg.TickInterval()),
		Updates:           a.updates,
		LongBreakMinutes:  cfg.Session.LongBreakMinutes,
		LongBreakInterval: cfg.Session.LongBreakInterval,
		WriteTimeout:      5 * time.Second,
	})
	a.applyDefaultMode(cfg)

	// Initialize the plan generator
	a.planner = plan.NewGenerator(plan.Options{
		Enabled:     cfg.Plan.Enabled,
		BaseURL:     cfg.Plan.BaseURL,
		APIKey:      cfg.Plan.APIKey,
		Model:       cfg.Plan.Model,
		Temperature: cfg.Plan.Temperature,
		MaxSubtasks: cfg.Plan.MaxSubtasks,
		Timeout:     cfg.Plan.Timeout(),
	})
	if !a.planner.IsEnabled() {
		log.Println("Plan generation: DISABLED, fallback subtasks only")
	}

	return a, nil
}

func (a *App) applyDefaultMode(cfg *config.Config) {
	mode, err := models.ParseMode(cfg.Session.DefaultMode)
	if err != nil {
		log.Printf("Warning: %v", err)
		return
	}
	if err := a.session.SelectMode(mode, cfg.Session.CustomStudyMinutes, cfg.Session.CustomBreakMinutes); err != nil {
		log.Printf("Warning: could not apply default mode %s: %v", mode, err)
	}
}

// WatchConfig re-applies session timing whenever the config file changes.
// Storage, socket and HTTP settings still need a restart.
func (a *App) WatchConfig(loader *config.Loader) {
	loader.Watch(a.applyConfig)
}

func (a *App) applyConfig(cfg *config.Config) {
	a.cfgMu.Lock()
	prev := a.cfg
	a.cfg = cfg
	a.cfgMu.Unlock()

	a.session.Configure(cfg.Session.LongBreakMinutes, cfg.Session.LongBreakInterval)

	// A mode picked over the socket survives unrelated edits
	if defaultModeChanged(prev, cfg) && !a.session.State().Active() {
		a.applyDefaultMode(cfg)
	}
	log.Printf("Config reloaded: long break %d min every %d cycles, default mode %s",
		cfg.Session.LongBreakMinutes, cfg.Session.LongBreakInterval, cfg.Session.DefaultMode)
}

func defaultModeChanged(prev, next *config.Config) bool {
	if prev == nil {
		return true
	}
	return prev.Session.DefaultMode != next.Session.DefaultMode ||
		prev.Session.CustomStudyMinutes != next.Session.CustomStudyMinutes ||
		prev.Session.CustomBreakMinutes != next.Session.CustomBreakMinutes
}

func (a *App) config() *config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

// setupSocket checks for existing socket and creates the listener
func (a *App) setupSocket() error {
	// Check if socket file exists and try connecting
	if _, err := os.Stat(a.socketPath); err == nil {
		conn, err := net.DialTimeout("unix", a.socketPath, 1*time.Second)
		if err == nil {
			// Connection successful - another instance is likely running
			conn.Close()
			return fmt.Errorf("socket %s already active, another instance might be running", a.socketPath)
		}
		log.Printf("Stale socket file found at %s, removing.", a.socketPath)
		if err := os.Remove(a.socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket file %s: %w", a.socketPath, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("error checking socket file %s: %w", a.socketPath, err)
	}

	// Create the listener
	addr, err := net.ResolveUnixAddr("unix", a.socketPath)
	if err != nil {
		return fmt.Errorf("failed to resolve unix addr %s: %w", a.socketPath, err)
	}

	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on socket %s: %w", a.socketPath, err)
	}
	// Only the owning user may send commands
	if err := os.Chmod(a.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set permissions on socket %s: %w", a.socketPath, err)
	}

	a.listener = listener
	log.Printf("Listening for commands on %s", a.socketPath)
	return nil
}

// listenForCommands accepts connections and handles them
func (a *App) listenForCommands() {
	defer log.Println("Socket command listener stopped.")

	for {
		conn, err := a.listener.AcceptUnix()
		if err != nil {
			// Check if the error is due to the listener being closed during shutdown
			select {
			case <-a.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Failed to accept connection: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		// Handle each connection concurrently
		a.wg.Go(func() { a.handleConnection(conn) })
	}
}

// handleConnection reads command, processes it, and sends response
func (a *App) handleConnection(conn *net.UnixConn) {
	defer conn.Close()

	// Set a deadline for reading the command
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var cmd ipc.Command
	if err := decoder.Decode(&cmd); err != nil {
		if err != io.EOF {
			log.Printf("Failed to decode command: %v", err)
		}
		_ = encoder.Encode(ipc.Response{Success: false, Message: "Failed to decode command: " + err.Error()})
		return
	}

	// Clear the read deadline once the command is in
	conn.SetReadDeadline(time.Time{})
	log.Printf("Received command: %s", cmd.Name)

	response := a.processCommand(cmd)

	// Plan generation can outlast the read deadline, so the write deadline
	// starts once the response is ready.
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := encoder.Encode(response); err != nil {
		log.Printf("Failed to send response: %v", err)
	}
}

func (a *App) startHTTP(addr string) error {
	h := api.NewHandler(a.planner, a.storage, a.session, a.config().OwnerID)
	router := api.NewRouter(h, a.config().HTTP.APIKey, log.Default())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	a.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("HTTP API listening on %s", ln.Addr())

	a.wg.Go(func() {
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	})
	return nil
}

func (a *App) Run() error {
	log.Println("Starting focusflow daemon...")
	log.Printf("Config: %+v", a.config().Redacted())

	if err := a.setupSocket(); err != nil {
		return multierr.Append(err, a.cleanup())
	}

	// Start signal handling goroutine
	a.handleSignals()

	// Start main loop and socket listener
	a.wg.Go(a.mainLoop)
	a.wg.Go(a.listenForCommands)

	// HTTP API is optional; an empty address disables it
	if addr := a.config().HTTP.ListenAddr; addr != "" {
		if err := a.startHTTP(addr); err != nil {
			a.cancel()
			return multierr.Append(err, a.shutdown())
		}
	}

	log.Println("focusflow daemon running. Send commands via focusflow-cli or socket.")
	// Wait until context is cancelled (by signal handler, Stop or an error)
	<-a.ctx.Done()

	return a.shutdown()
}

// Stop asks a running daemon to shut down; Run returns once it has.
func (a *App) Stop() {
	a.cancel()
}

func (a *App) shutdown() error {
	log.Println("Shutdown signal received, waiting for components...")

	// Close the listener *before* waiting for goroutines to allow accept() to return
	if a.listener != nil {
		if err := a.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("Error closing socket listener: %v", err)
		}
	}
	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.httpServer.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down HTTP server: %v", err)
		}
		cancel()
	}

	// Wait for goroutines with a timeout
	waitChan := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(waitChan)
	}()

	select {
	case <-waitChan:
		log.Println("All application goroutines finished.")
	case <-time.After(shutdownTimeout):
		log.Println("Warning: Timeout waiting for application goroutines to stop.")
	}

	err := a.cleanup()
	log.Println("focusflow daemon finished.")
	return err
}

// mainLoop consumes controller updates. It never calls back into the
// controller, which may be holding its lock while sending.
func (a *App) mainLoop() {
	defer log.Println("Main application loop stopped.")

	for {
		select {
		case <-a.ctx.Done():
			return

		case update := <-a.updates:
			switch u := update.(type) {
			case event.StatusUpdate:
				log.Printf("Session State: %s, Remaining: %s, Cycles: %d",
					u.State, formatDuration(u.RemainingTime), u.CycleCount)

			case event.Notification:
				log.Printf("Notification: [%s] %s", u.Title, u.Message)

			case event.StorageFailure:
				log.Printf("Warning: storage write %s failed: %v", u.Op, u.Err)
				a.statusMutex.Lock()
				a.storageFailures++
				a.statusMutex.Unlock()

			default:
				log.Printf("Unknown update type from session controller: %T", u)
			}
		}
	}
}

func (a *App) handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Printf("Received signal: %v. Initiating shutdown...", sig)
			a.cancel()
		case <-a.ctx.Done():
		}
	}()
}

// cleanup ends any running session, drains its writes and closes storage.
// Every failure is returned, combined.
func (a *App) cleanup() error {
	log.Println("Running cleanup...")
	a.cancel()

	var errs error
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// 1. End the session so a partial interval is recorded
	if a.session != nil {
		if summary, ok := a.session.EndSessionEarly(ctx); ok {
			log.Printf("Ended running session on shutdown: %.2f study minutes", summary.TotalStudyMinutes)
		}
		if err := a.session.Flush(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("flush session writes: %w", err))
		}
		a.session.Close()
	}

	// 2. Close storage
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close storage: %w", err))
		}
	}

	// 3. Remove socket file
	if a.listener != nil {
		if _, err := os.Stat(a.socketPath); err == nil {
			log.Printf("Removing socket file: %s", a.socketPath)
			if err := os.Remove(a.socketPath); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("remove socket file: %w", err))
			}
		}
	}

	log.Println("Cleanup finished.")
	return errs
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
