package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"fieldline/internal/config"
	"fieldline/internal/sessionvault"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckAutomationService verifies that the browser-automation sidecar answers
// HTTP requests. Any response counts as reachable; the sidecar exposes no
// dedicated health endpoint.
func CheckAutomationService(ctx context.Context, baseURL string) Result {
	const name = "Automation service"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("reachability check failed (%v)", err)}
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{Name: name, Detail: "reachability check timed out"}
		}
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	defer resp.Body.Close()
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckSession verifies that a portal session has been imported and that the
// configured key decrypts it.
func CheckSession(cfg *config.Config) Result {
	const name = "Portal session"

	vault, err := sessionvault.New(cfg.Portal.SessionKey)
	if err != nil {
		return Result{Name: name, Detail: "session key missing"}
	}

	envelope, err := os.ReadFile(cfg.SessionEnvelopePath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{Name: name, Detail: "not imported"}
		}
		return Result{Name: name, Detail: fmt.Sprintf("read failed (%v)", err)}
	}
	if _, err := vault.Decrypt(string(envelope)); err != nil {
		return Result{Name: name, Detail: "imported but not decryptable with the configured key"}
	}
	return Result{Name: name, Passed: true, Detail: "imported and decryptable"}
}

// CheckNotifications reports whether ntfy notifications are configured.
// An empty topic is a deliberate opt-out, not a failure.
func CheckNotifications(cfg *config.Config) Result {
	const name = "Notifications"

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Detail: "ntfy topic configured"}
}
