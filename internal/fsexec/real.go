package fsexec

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fathom-run/fathom/internal/fsexec/fserr"
	"github.com/fathom-run/fathom/internal/vpath"
)

// RealBackend serves fs:// paths against a real workspace directory on
// disk.
type RealBackend struct {
	WorkspaceRoot string
}

func (b *RealBackend) list(p vpath.Parsed) (any, *fserr.Error) {
	target, err := b.resolve(p.RelPath)
	if err != nil {
		return nil, err
	}

	info, statErr := os.Stat(target)
	if statErr != nil {
		return nil, mapIOError(statErr)
	}
	if !info.IsDir() {
		return nil, fserr.NotDirectory(fmt.Sprintf("`%s` is not a directory", p.NormalizedURI))
	}

	dirEntries, readErr := os.ReadDir(target)
	if readErr != nil {
		return nil, mapIOError(readErr)
	}

	type entry struct {
		path, name, kind string
		size             int64
		hasSize          bool
	}
	entries := make([]entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		entryPath := filepath.Join(target, de.Name())
		rel, relErr := filepath.Rel(b.WorkspaceRoot, entryPath)
		if relErr != nil {
			return nil, fserr.PermissionDenied("path escaped workspace root")
		}
		kind := "other"
		var size int64
		hasSize := false
		if de.IsDir() {
			kind = "dir"
		} else if de.Type().IsRegular() {
			kind = "file"
			info, infoErr := de.Info()
			if infoErr != nil {
				return nil, mapIOError(infoErr)
			}
			size = info.Size()
			hasSize = true
		}
		entries = append(entries, entry{
			path: "fs://" + pathForURI(rel), name: de.Name(), kind: kind, size: size, hasSize: hasSize,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })

	out := make([]any, 0, len(entries))
	for _, e := range entries {
		m := map[string]any{"path": e.path, "name": e.name, "kind": e.kind}
		if e.hasSize {
			m["size"] = e.size
		}
		out = append(out, m)
	}
	return map[string]any{"entries": out}, nil
}

func (b *RealBackend) read(p vpath.Parsed) (any, *fserr.Error) {
	target, err := b.resolve(p.RelPath)
	if err != nil {
		return nil, err
	}

	info, statErr := os.Stat(target)
	if statErr != nil {
		return nil, mapIOError(statErr)
	}
	if !info.Mode().IsRegular() {
		return nil, fserr.NotFile(fmt.Sprintf("`%s` is not a file", p.NormalizedURI))
	}

	content, readErr := os.ReadFile(target)
	if readErr != nil {
		return nil, mapIOError(readErr)
	}
	return map[string]any{"content": string(content), "bytes": len(content)}, nil
}

func (b *RealBackend) write(p vpath.Parsed, content string, allowOverride bool) (any, *fserr.Error) {
	target, err := b.resolve(p.RelPath)
	if err != nil {
		return nil, err
	}

	existed := false
	if info, statErr := os.Stat(target); statErr == nil {
		existed = true
		if !info.Mode().IsRegular() {
			return nil, fserr.NotFile(fmt.Sprintf("`%s` is not a file", p.NormalizedURI))
		}
		if !allowOverride {
			return nil, fserr.AlreadyExists(fmt.Sprintf("`%s` already exists", p.NormalizedURI))
		}
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return nil, mapIOError(statErr)
	}

	if parent := filepath.Dir(target); parent != "" {
		if mkErr := os.MkdirAll(parent, 0o755); mkErr != nil {
			return nil, mapIOError(mkErr)
		}
	}

	if writeErr := os.WriteFile(target, []byte(content), 0o644); writeErr != nil {
		return nil, mapIOError(writeErr)
	}

	return map[string]any{
		"bytes_written": len(content),
		"created":       !existed,
		"overwritten":   existed,
	}, nil
}

func (b *RealBackend) replace(p vpath.Parsed, old, new string, mode ReplaceMode) (any, *fserr.Error) {
	if old == "" {
		return nil, fserr.InvalidArgs("replace.old must be non-empty")
	}

	target, err := b.resolve(p.RelPath)
	if err != nil {
		return nil, err
	}

	info, statErr := os.Stat(target)
	if statErr != nil {
		return nil, mapIOError(statErr)
	}
	if !info.Mode().IsRegular() {
		return nil, fserr.NotFile(fmt.Sprintf("`%s` is not a file", p.NormalizedURI))
	}

	raw, readErr := os.ReadFile(target)
	if readErr != nil {
		return nil, mapIOError(readErr)
	}
	current := string(raw)
	updated, replacements := applyReplace(current, old, new, mode)

	if writeErr := os.WriteFile(target, []byte(updated), 0o644); writeErr != nil {
		return nil, mapIOError(writeErr)
	}

	return map[string]any{"replacements": replacements, "bytes": len(updated)}, nil
}

// resolve joins relPath onto the workspace root and re-checks containment,
// since the path parser already rejected `..` escapes lexically but a
// symlink planted inside the workspace could still point outside it.
func (b *RealBackend) resolve(relPath string) (string, *fserr.Error) {
	target := filepath.Join(b.WorkspaceRoot, filepath.FromSlash(relPath))
	if err := ensureWithinWorkspace(b.WorkspaceRoot, target); err != nil {
		return "", err
	}
	return target, nil
}

// ensureWithinWorkspace walks up from target to the deepest existing
// ancestor (the target itself may not exist yet, e.g. on write) and
// requires its canonical form to sit inside the canonical workspace root.
func ensureWithinWorkspace(workspaceRoot, target string) *fserr.Error {
	probe := target
	for {
		if _, err := os.Lstat(probe); err == nil {
			break
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			return fserr.PermissionDenied("unable to resolve path within workspace root")
		}
		probe = parent
	}

	canonicalRoot, err := filepath.EvalSymlinks(workspaceRoot)
	if err != nil {
		return mapIOError(err)
	}
	canonicalProbe, err := filepath.EvalSymlinks(probe)
	if err != nil {
		return mapIOError(err)
	}

	rel, err := filepath.Rel(canonicalRoot, canonicalProbe)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fserr.PermissionDenied("path escapes configured workspace root")
	}
	return nil
}

func mapIOError(err error) *fserr.Error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fserr.NotFound(err.Error())
	case errors.Is(err, fs.ErrPermission):
		return fserr.PermissionDenied(err.Error())
	case errors.Is(err, fs.ErrExist):
		return fserr.AlreadyExists(err.Error())
	default:
		return fserr.IOError(err.Error())
	}
}

func pathForURI(rel string) string {
	v := filepath.ToSlash(rel)
	if v == "" {
		return "."
	}
	return v
}
