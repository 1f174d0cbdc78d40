// Package browser starts and stops the Chromium instance graph tabs live in.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"
)

const (
	defaultWindowSize   = "1920,1080"
	defaultReadyTimeout = 15 * time.Second
	readyPollInterval   = 250 * time.Millisecond
	stopGracePeriod     = 5 * time.Second
)

var binaryCandidates = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable", "chrome"}

const macChromePath = "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"

// Config holds browser launch configuration.
type Config struct {
	CDPAddress string
	CDPPort    int
	// BinaryPath overrides browser detection.
	BinaryPath   string
	StartURL     string
	ProfileDir   string
	WindowSize   string
	Headless     bool
	ReadyTimeout time.Duration
}

// Launcher owns at most one browser process. When a browser already serves
// CDP on the configured port it is reused and never stopped.
type Launcher struct {
	cfg    Config
	client *http.Client

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
}

func NewLauncher(cfg Config) *Launcher {
	if cfg.WindowSize == "" {
		cfg.WindowSize = defaultWindowSize
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	return &Launcher{cfg: cfg, client: &http.Client{Timeout: time.Second}}
}

func (l *Launcher) endpoint() string {
	return net.JoinHostPort(l.cfg.CDPAddress, strconv.Itoa(l.cfg.CDPPort))
}

// Launch starts the browser and waits until its CDP endpoint answers.
func (l *Launcher) Launch(ctx context.Context) error {
	if l.cdpReady(ctx) {
		slog.Info("browser already serving CDP, reusing it", "endpoint", l.endpoint())
		return nil
	}
	if isPortInUse(l.cfg.CDPAddress, l.cfg.CDPPort) {
		return fmt.Errorf("port %s is taken by something that is not a CDP endpoint", l.endpoint())
	}

	binary, err := resolveBinary(l.cfg.BinaryPath)
	if err != nil {
		return err
	}
	if l.cfg.ProfileDir != "" {
		if err := os.MkdirAll(l.cfg.ProfileDir, 0o755); err != nil {
			return fmt.Errorf("create profile dir: %w", err)
		}
	}

	cmd := exec.Command(binary, l.args()...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		slog.Info("browser process exited", "pid", cmd.Process.Pid, "error", err)
		close(exited)
	}()

	l.mu.Lock()
	l.cmd, l.exited = cmd, exited
	l.mu.Unlock()
	slog.Info("browser process started", "path", binary, "pid", cmd.Process.Pid, "headless", l.cfg.Headless)

	if err := l.waitReady(ctx, exited); err != nil {
		l.Stop()
		return fmt.Errorf("waiting for CDP: %w", err)
	}
	slog.Info("CDP endpoint ready", "endpoint", l.endpoint())
	return nil
}

func (l *Launcher) args() []string {
	args := []string{
		"--remote-debugging-port=" + strconv.Itoa(l.cfg.CDPPort),
		"--remote-debugging-address=" + l.cfg.CDPAddress,
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-dev-shm-usage",
		"--disable-breakpad",
		"--window-size=" + l.cfg.WindowSize,
	}
	if l.cfg.ProfileDir != "" {
		args = append(args, "--user-data-dir="+l.cfg.ProfileDir)
	}
	if l.cfg.Headless {
		args = append(args, "--headless=new", "--hide-scrollbars", "--mute-audio")
	}
	if l.cfg.StartURL != "" {
		args = append(args, l.cfg.StartURL)
	}
	return args
}

// cdpReady reports whether /json/version answers 200.
func (l *Launcher) cdpReady(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+l.endpoint()+"/json/version", nil)
	if err != nil {
		return false
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// waitReady polls the endpoint until it answers, the process dies, or
// ReadyTimeout passes.
func (l *Launcher) waitReady(ctx context.Context, exited <-chan struct{}) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.ReadyTimeout)
	defer cancel()
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("CDP not ready within %s at %s", l.cfg.ReadyTimeout, l.endpoint())
			}
			return ctx.Err()
		case <-exited:
			return errors.New("browser exited before CDP became ready")
		case <-ticker.C:
			if l.cdpReady(ctx) {
				return nil
			}
		}
	}
}

// Running reports whether this launcher's browser process is alive.
func (l *Launcher) Running() bool {
	l.mu.Lock()
	exited := l.exited
	l.mu.Unlock()
	if exited == nil {
		return false
	}
	select {
	case <-exited:
		return false
	default:
		return true
	}
}

// Stop sends SIGTERM and kills the process after a grace period. Reused
// browsers are left alone.
func (l *Launcher) Stop() {
	l.mu.Lock()
	cmd, exited := l.cmd, l.exited
	l.mu.Unlock()
	if cmd == nil || cmd.Process == nil || !l.Running() {
		return
	}

	slog.Info("stopping browser", "pid", cmd.Process.Pid)
	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-exited:
	case <-time.After(stopGracePeriod):
		slog.Warn("browser did not exit, sending SIGKILL", "pid", cmd.Process.Pid)
		_ = cmd.Process.Kill()
		<-exited
	}
}

func resolveBinary(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("browser binary %q: %w", explicit, err)
		}
		return explicit, nil
	}
	for _, name := range binaryCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		if _, err := os.Stat(macChromePath); err == nil {
			return macChromePath, nil
		}
	}
	return "", fmt.Errorf("no supported browser found (tried %v); set BROWSER_PATH", binaryCandidates)
}

func isPortInUse(address string, port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(address, strconv.Itoa(port)), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
