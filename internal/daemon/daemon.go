// Package daemon runs the comment watcher in the background and answers
// status/refresh/stop commands on a unix socket.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/twrkit/internal/config"
	"github.com/twrkit/internal/journal"
)

const (
	SocketName = "twrkit.sock"
	PidFile    = "twrkit.pid"
)

// Status represents the current daemon status
type Status struct {
	Running       bool      `json:"running"`
	PID           int       `json:"pid"`
	StartTime     time.Time `json:"start_time"`
	Uptime        string    `json:"uptime"`
	Interval      string    `json:"interval"`
	Entries       int       `json:"entries"`
	Refreshes     int64     `json:"refreshes"`
	CommentsAdded int64     `json:"comments_added"`
	Errors        int64     `json:"errors"`
	LastRefresh   time.Time `json:"last_refresh"`
	LastError     string    `json:"last_error,omitempty"`
}

// Command represents a command sent to the daemon
type Command struct {
	Type string `json:"type"`
}

// Response represents a response from the daemon
type Response struct {
	Success bool    `json:"success"`
	Message string  `json:"message,omitempty"`
	Status  *Status `json:"status,omitempty"`
}

// Refresher pulls new comments for one entry.
type Refresher interface {
	Refresh(ctx context.Context, uid string, done func(added int, err error)) error
}

// Lister returns the entries to watch.
type Lister func() ([]string, error)

// Daemon periodically refreshes the comments of shared journal entries.
type Daemon struct {
	cfg        config.Watch
	refresher  Refresher
	list       Lister
	runtimeDir string

	status   Status
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	listener net.Listener
	trigger  chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithRuntimeDir overrides where the socket and pid file live.
func WithRuntimeDir(dir string) Option {
	return func(d *Daemon) { d.runtimeDir = dir }
}

// GetRuntimeDir returns the runtime directory for twrkit
func GetRuntimeDir() string {
	// Use XDG_RUNTIME_DIR if available, otherwise use /tmp
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "twrkit")
	}
	return filepath.Join(os.TempDir(), "twrkit")
}

// New creates a new daemon instance
func New(cfg config.Watch, refresher Refresher, list Lister, opts ...Option) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		cfg:        cfg,
		refresher:  refresher,
		list:       list,
		runtimeDir: GetRuntimeDir(),
		ctx:        ctx,
		cancel:     cancel,
		trigger:    make(chan struct{}, 1),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	if err := os.MkdirAll(d.runtimeDir, 0o700); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}
	return d, nil
}

// SocketPath returns the control socket path.
func (d *Daemon) SocketPath() string {
	return filepath.Join(d.runtimeDir, SocketName)
}

// PidPath returns the pid file path.
func (d *Daemon) PidPath() string {
	return filepath.Join(d.runtimeDir, PidFile)
}

// Start writes the pid file, opens the control socket and starts refreshing.
func (d *Daemon) Start() error {
	log.Printf("[daemon] starting watcher (interval %s)", d.cfg.Interval)

	if err := os.WriteFile(d.PidPath(), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}

	// Remove existing socket if present
	os.Remove(d.SocketPath())

	ln, err := net.Listen("unix", d.SocketPath())
	if err != nil {
		os.Remove(d.PidPath())
		return fmt.Errorf("failed to create socket: %w", err)
	}
	d.listener = ln

	d.mu.Lock()
	d.status.Running = true
	d.status.PID = os.Getpid()
	d.status.StartTime = time.Now()
	d.status.Interval = d.cfg.Interval.String()
	d.mu.Unlock()

	d.wg.Add(2)
	go d.acceptConnections()
	go d.run()

	return nil
}

// Done is closed once the daemon has stopped.
func (d *Daemon) Done() <-chan struct{} {
	return d.stopped
}

// Trigger requests an immediate refresh round.
func (d *Daemon) Trigger() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// GetStatus returns the current status
func (d *Daemon) GetStatus() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := d.status
	if !status.StartTime.IsZero() {
		status.Uptime = time.Since(status.StartTime).Round(time.Second).String()
	}
	return status
}

// Stop stops the daemon
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		log.Printf("[daemon] stopping watcher")

		d.cancel()
		if d.listener != nil {
			d.listener.Close()
		}
		d.wg.Wait()

		os.Remove(d.SocketPath())
		os.Remove(d.PidPath())

		d.mu.Lock()
		d.status.Running = false
		d.mu.Unlock()

		close(d.stopped)
		log.Printf("[daemon] watcher stopped")
	})
}

func (d *Daemon) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	d.refreshAll()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.refreshAll()
		case <-d.trigger:
			d.refreshAll()
		}
	}
}

func (d *Daemon) refreshAll() {
	uids, err := d.list()
	if err != nil {
		d.recordError(fmt.Errorf("failed to list entries: %w", err))
		return
	}
	if len(d.cfg.Entries) > 0 {
		uids = d.cfg.Entries
	}

	d.mu.Lock()
	d.status.Entries = len(uids)
	d.mu.Unlock()

	for _, uid := range uids {
		if d.ctx.Err() != nil {
			return
		}
		added, err := d.refresh(uid)
		if errors.Is(err, journal.ErrNotShared) {
			continue
		}
		if err != nil {
			d.recordError(fmt.Errorf("%s: %w", uid, err))
			continue
		}

		d.mu.Lock()
		d.status.Refreshes++
		d.status.CommentsAdded += int64(added)
		d.status.LastRefresh = time.Now()
		d.mu.Unlock()
	}
}

type refreshResult struct {
	added int
	err   error
}

func (d *Daemon) refresh(uid string) (int, error) {
	ch := make(chan refreshResult, 1)
	err := d.refresher.Refresh(d.ctx, uid, func(added int, err error) {
		ch <- refreshResult{added, err}
	})
	if err != nil {
		return 0, err
	}

	select {
	case r := <-ch:
		return r.added, r.err
	case <-d.ctx.Done():
		return 0, d.ctx.Err()
	}
}

func (d *Daemon) recordError(err error) {
	log.Printf("[daemon] refresh error: %v", err)
	d.mu.Lock()
	d.status.Errors++
	d.status.LastError = err.Error()
	d.mu.Unlock()
}

func (d *Daemon) acceptConnections() {
	defer d.wg.Done()
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.ctx.Done():
				return
			default:
				if errors.Is(err, net.ErrClosed) {
					return
				}
				log.Printf("[daemon] accept error: %v", err)
				continue
			}
		}
		go d.handleConnection(conn)
	}
}

func (d *Daemon) handleConnection(conn net.Conn) {
	defer conn.Close()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var cmd Command
	if err := decoder.Decode(&cmd); err != nil {
		encoder.Encode(Response{Success: false, Message: err.Error()})
		return
	}

	var resp Response

	switch cmd.Type {
	case "status":
		status := d.GetStatus()
		resp = Response{Success: true, Status: &status}

	case "refresh":
		d.Trigger()
		resp = Response{Success: true, Message: "Refresh scheduled"}

	case "stop":
		encoder.Encode(Response{Success: true, Message: "Stopping watcher..."})
		go d.Stop()
		return

	default:
		resp = Response{Success: false, Message: "Unknown command: " + cmd.Type}
	}

	encoder.Encode(resp)
}

// IsRunning checks if a watcher is listening in runtimeDir
func IsRunning(runtimeDir string) bool {
	conn, err := net.Dial("unix", filepath.Join(runtimeDir, SocketName))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// SendCommand sends a command to the watcher listening in runtimeDir
func SendCommand(runtimeDir string, cmd Command) (*Response, error) {
	conn, err := net.Dial("unix", filepath.Join(runtimeDir, SocketName))
	if err != nil {
		return nil, fmt.Errorf("watcher not running: %w", err)
	}
	defer conn.Close()

	encoder := json.NewEncoder(conn)
	decoder := json.NewDecoder(conn)

	if err := encoder.Encode(cmd); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	var resp Response
	if err := decoder.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &resp, nil
}
