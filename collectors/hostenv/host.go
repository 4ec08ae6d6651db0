package hostenv

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"diag-bundle/logging"
)

var log = logging.L("hostenv")

// ErrNoPackageManager is returned when neither rpm nor dpkg-query is available.
var ErrNoPackageManager = errors.New("hostenv: no supported package manager found")

// ErrNoServiceManager is returned when systemctl is unavailable.
var ErrNoServiceManager = errors.New("hostenv: systemctl not found")

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

type HostOptions struct {
	// LookupTimeout bounds each rpm/dpkg/systemctl invocation. Default 5s.
	LookupTimeout time.Duration
}

// Host queries the live system. Answers are cached per name for the lifetime of
// the value.
type Host struct {
	timeout  time.Duration
	run      runFunc
	lookPath func(string) (string, error)

	mu       sync.Mutex
	packages map[string]bool
	services map[string]bool
}

func NewHost(opts HostOptions) *Host {
	timeout := opts.LookupTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Host{
		timeout:  timeout,
		run:      runOutput,
		lookPath: exec.LookPath,
		packages: make(map[string]bool),
		services: make(map[string]bool),
	}
}

func runOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = time.Second
	return cmd.Output()
}

func (h *Host) cached(m map[string]bool, key string) (bool, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := m[key]
	return v, ok
}

func (h *Host) store(m map[string]bool, key string, v bool) {
	h.mu.Lock()
	m[key] = v
	h.mu.Unlock()
}

// HasPackage asks rpm first and falls back to dpkg-query.
func (h *Host) HasPackage(ctx context.Context, name string) (bool, error) {
	if v, ok := h.cached(h.packages, name); ok {
		return v, nil
	}

	var tried bool
	var rpmErr error
	if _, err := h.lookPath("rpm"); err == nil {
		tried = true
		ok, err := h.rpmInstalled(ctx, name)
		if err == nil && ok {
			h.store(h.packages, name, true)
			return true, nil
		}
		if err != nil {
			log.Debug("rpm query failed", "package", name, logging.KeyError, err)
			rpmErr = err
		}
	}
	if _, err := h.lookPath("dpkg-query"); err == nil {
		tried = true
		ok, err := h.dpkgInstalled(ctx, name)
		if err != nil {
			return false, err
		}
		h.store(h.packages, name, ok)
		return ok, nil
	}
	if !tried {
		return false, ErrNoPackageManager
	}
	if rpmErr != nil {
		// Unknown, not absent: a later lookup may succeed.
		return false, rpmErr
	}
	h.store(h.packages, name, false)
	return false, nil
}

func (h *Host) rpmInstalled(ctx context.Context, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	_, err := h.run(ctx, "rpm", "-q", "--quiet", name)
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// rpm exits 1 for "not installed".
		return false, nil
	}
	return false, fmt.Errorf("rpm -q %s: %w", name, err)
}

func (h *Host) dpkgInstalled(ctx context.Context, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	out, err := h.run(ctx, "dpkg-query", "-W", "-f=${Status}", name)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, fmt.Errorf("dpkg-query %s: %w", name, err)
	}
	return strings.Contains(string(out), "install ok installed"), nil
}

// HasService reports whether a unit file or loaded unit named name exists.
func (h *Host) HasService(ctx context.Context, name string) (bool, error) {
	svc := ServiceName(name)
	if v, ok := h.cached(h.services, svc); ok {
		return v, nil
	}
	if _, err := h.lookPath("systemctl"); err != nil {
		return false, ErrNoServiceManager
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	unit := svc + ".service"
	out, err := h.run(ctx, "systemctl", "list-unit-files", unit, "--no-legend", "--no-pager", "--plain")
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return false, fmt.Errorf("systemctl list-unit-files %s: %w", unit, err)
		}
		// Exit 1 means no matching unit file; fall through to the runtime check.
	}
	if unitListed(out, unit) {
		h.store(h.services, svc, true)
		return true, nil
	}

	if _, err := h.run(ctx, "systemctl", "is-active", "--quiet", unit); err == nil {
		h.store(h.services, svc, true)
		return true, nil
	}
	h.store(h.services, svc, false)
	return false, nil
}

func unitListed(out []byte, unit string) bool {
	s := bufio.NewScanner(bytes.NewReader(out))
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) > 0 && fields[0] == unit {
			return true
		}
	}
	return false
}
