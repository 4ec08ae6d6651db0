package linux

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// waitDelay bounds how long Run keeps reading output after the context
// expires. Children that inherited stdout would otherwise hold it open.
const waitDelay = time.Second

func runCmd(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = waitDelay
	killProcessGroup(cmd)
	err := cmd.Run()
	return out.Bytes(), err
}

// splitCommand splits a declared command on whitespace. Commands run without a
// shell, so pipes and redirections are not interpreted.
func splitCommand(s string) []string {
	return strings.Fields(s)
}

const maxNameLen = 128

// outputName turns a command line or unit into a file name.
func outputName(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.TrimSpace(s) {
		ok := r == '.' || r == '-' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			if lastUnderscore {
				continue
			}
			r = '_'
		}
		lastUnderscore = r == '_'
		b.WriteRune(r)
	}
	name := strings.Trim(b.String(), "_.")
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	if name == "" {
		name = "unnamed"
	}
	return name
}

// uniqueName returns name, or name_1, name_2, ... when an earlier item of
// the same plugin already claimed it.
func uniqueName(used map[string]bool, name string) string {
	if !used[name] {
		used[name] = true
		return name
	}
	for i := 1; ; i++ {
		candidate := name + "_" + strconv.Itoa(i)
		if !used[candidate] {
			used[candidate] = true
			return candidate
		}
	}
}

// tail keeps at most max trailing bytes of b.
func tail(b []byte, max int64) ([]byte, bool) {
	if max <= 0 || int64(len(b)) <= max {
		return b, false
	}
	return b[int64(len(b))-max:], true
}

// looksBinary applies the usual NUL-in-the-first-block heuristic.
func looksBinary(b []byte) bool {
	n := len(b)
	if n > 8000 {
		n = 8000
	}
	return bytes.IndexByte(b[:n], 0) >= 0
}
