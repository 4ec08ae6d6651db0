package linux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"diag-bundle/collectors"
	"diag-bundle/evidence"
)

var errPluginBudget = errors.New("plugin size limit reached")

var pseudoFilesystems = []string{"/proc", "/sys", "/dev", "/run"}

func isPseudo(path string) bool {
	for _, e := range pseudoFilesystems {
		if collectors.Within(path, e) {
			return true
		}
	}
	return false
}

type copyState struct {
	seen      map[string]bool
	copied    int64
	exhausted bool
}

func (c *PluginCollector) copyFiles(ctx context.Context, rc collectors.RunContext) []collectors.Artifact {
	st := &copyState{seen: make(map[string]bool)}
	var artifacts []collectors.Artifact

	for _, pattern := range c.spec.CopyPaths {
		if ctx.Err() != nil || st.exhausted {
			return artifacts
		}

		roots := []string{filepath.Clean(pattern)}
		if collectors.HasGlob(pattern) {
			matches, err := filepath.Glob(filepath.Clean(pattern))
			if err != nil {
				artifacts = append(artifacts, c.failure(collectors.KindFile, pattern, err))
				continue
			}
			if len(matches) == 0 {
				artifacts = append(artifacts, c.failure(collectors.KindFile, pattern, fs.ErrNotExist))
				continue
			}
			roots = matches
		}

		for _, root := range roots {
			artifacts = append(artifacts, c.copyRoot(ctx, rc, st, root)...)
		}
	}
	return artifacts
}

func (c *PluginCollector) copyRoot(ctx context.Context, rc collectors.RunContext, st *copyState, root string) []collectors.Artifact {
	if c.spec.IsForbidden(root) {
		return nil
	}
	info, err := os.Lstat(root)
	if err != nil {
		return []collectors.Artifact{c.failure(collectors.KindFile, root, err)}
	}
	if info.IsDir() && isPseudo(root) {
		return []collectors.Artifact{c.failure(collectors.KindFile, root, errors.New("refusing to walk a pseudo filesystem directory"))}
	}
	if !info.IsDir() {
		if a, ok := c.copyEntry(rc, st, root, info); ok {
			return []collectors.Artifact{a}
		}
		return nil
	}

	var artifacts []collectors.Artifact
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if walkErr != nil {
			artifacts = append(artifacts, c.failure(collectors.KindFile, path, walkErr))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if c.spec.IsForbidden(path) || (path != root && isPseudo(path)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			artifacts = append(artifacts, c.failure(collectors.KindFile, path, err))
			return nil
		}
		if a, ok := c.copyEntry(rc, st, path, info); ok {
			artifacts = append(artifacts, a)
		}
		if st.exhausted {
			return filepath.SkipAll
		}
		return nil
	})
	return artifacts
}

// copyEntry stores one non-directory entry. Symlinks are recreated, not
// followed; sockets, devices and fifos are ignored.
func (c *PluginCollector) copyEntry(rc collectors.RunContext, st *copyState, path string, info fs.FileInfo) (collectors.Artifact, bool) {
	if st.seen[path] {
		return collectors.Artifact{}, false
	}
	st.seen[path] = true

	rel := filepath.Join(c.Name(), "files", strings.TrimPrefix(filepath.Clean(path), string(os.PathSeparator)))
	meta := map[string]string{
		"mode":     info.Mode().String(),
		"mod_time": info.ModTime().UTC().Format(time.RFC3339Nano),
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return c.failure(collectors.KindFile, path, err), true
		}
		dst := filepath.Join(rc.OutputDir, rel)
		if err := evidence.EnsureParent(dst); err != nil {
			return c.failure(collectors.KindFile, path, err), true
		}
		_ = os.Remove(dst)
		if err := os.Symlink(target, dst); err != nil {
			return c.failure(collectors.KindFile, path, err), true
		}
		meta["link_target"] = target
		return collectors.Artifact{
			RelativePath: filepath.ToSlash(rel),
			Collector:    c.Name(),
			Kind:         collectors.KindFile,
			Source:       path,
			CollectedAt:  now(),
			Metadata:     meta,
		}, true
	}
	if !info.Mode().IsRegular() {
		return collectors.Artifact{}, false
	}

	if st.exhausted {
		return collectors.Artifact{}, false
	}
	data, err := readTail(path, info.Size(), c.opts.MaxFileBytes)
	if err != nil {
		return c.failure(collectors.KindFile, path, err), true
	}
	if st.copied+int64(len(data)) > c.opts.MaxPluginBytes {
		st.exhausted = true
		return c.failure(collectors.KindFile, path, fmt.Errorf("%w (%d bytes)", errPluginBudget, c.opts.MaxPluginBytes)), true
	}
	st.copied += int64(len(data))
	if info.Size() > c.opts.MaxFileBytes {
		meta["truncated"] = "true"
	}

	a, err := c.writeCaptured(rc, collectors.KindFile, path, rel, data, meta)
	if err != nil {
		return c.failure(collectors.KindFile, path, err), true
	}
	return a, true
}

// readTail reads at most max bytes, preferring the end of the file. Files in
// pseudo filesystems report size 0, so they are read until EOF and trimmed
// later.
func readTail(path string, size, max int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if size > max {
		if _, err := f.Seek(size-max, io.SeekStart); err != nil {
			return nil, err
		}
		return io.ReadAll(io.LimitReader(f, max))
	}
	return io.ReadAll(io.LimitReader(f, max+1))
}
