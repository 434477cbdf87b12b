// Package fsexec implements the fs_list/fs_read/fs_write/fs_replace tool
// executors against the managed (profile-backed) and real (workspace
// filesystem) backends addressed by vpath.
package fsexec

import (
	"encoding/json"

	"github.com/fathom-run/fathom/internal/fsexec/fserr"
)

// Outcome is the canonical string outcome a task completer hands back to
// the session actor: Message is the caller-facing JSON envelope, Succeeded
// mirrors its "ok" field for cheap branching without reparsing.
type Outcome struct {
	Succeeded bool
	Message   string
}

func success(op, path, target string, data any) Outcome {
	payload := map[string]any{
		"ok":     true,
		"op":     op,
		"path":   path,
		"target": target,
		"data":   data,
	}
	return Outcome{Succeeded: true, Message: mustJSON(payload)}
}

func failure(op string, path *string, err *fserr.Error, target *string) Outcome {
	payload := map[string]any{
		"ok":         false,
		"op":         op,
		"error_code": err.Code,
		"message":    err.Message,
	}
	if path != nil {
		payload["path"] = *path
	}
	if target != nil {
		payload["target"] = *target
	}
	return Outcome{Succeeded: false, Message: mustJSON(payload)}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// Only ever fed maps of strings/bools/slices built in this package.
		panic(err)
	}
	return string(b)
}
