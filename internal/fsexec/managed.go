package fsexec

import (
	"fmt"
	"strings"

	"github.com/fathom-run/fathom/internal/fsexec/fserr"
	"github.com/fathom-run/fathom/internal/profile"
	"github.com/fathom-run/fathom/internal/vpath"
)

// ManagedBackend serves managed:// paths against a profile.Store.
type ManagedBackend struct {
	Store *profile.Store
}

func (b *ManagedBackend) list(p vpath.Parsed) (any, *fserr.Error) {
	if p.Entity == vpath.EntityAgent {
		b.Store.GetOrCreateAgent(p.ID)
	} else {
		b.Store.GetOrCreateUser(p.ID)
	}

	if p.Field != "" {
		if !validField(p.Entity, p.Field) {
			return nil, invalidField(p.Entity, p.Field)
		}
		return map[string]any{
			"entries": []any{
				map[string]any{"path": p.NormalizedURI, "name": p.Field, "kind": "file"},
			},
		}, nil
	}

	base := p.NormalizedURI
	fields := profile.AgentFields
	if p.Entity == vpath.EntityUser {
		fields = profile.UserFields
	}
	entries := make([]any, 0, len(fields))
	for _, f := range fields {
		entries = append(entries, map[string]any{
			"path": base + "/" + f, "name": f, "kind": "file",
		})
	}
	return map[string]any{"entries": entries}, nil
}

func (b *ManagedBackend) read(p vpath.Parsed) (any, *fserr.Error) {
	field, err := requireField(p)
	if err != nil {
		return nil, err
	}

	var content string
	if p.Entity == vpath.EntityAgent {
		ap := b.Store.GetOrCreateAgent(p.ID)
		content, _ = profile.ReadAgentField(ap, field)
	} else {
		up := b.Store.GetOrCreateUser(p.ID)
		content, _ = profile.ReadUserField(up, field)
	}

	return map[string]any{"content": content, "bytes": len(content)}, nil
}

func (b *ManagedBackend) write(p vpath.Parsed, content string, allowOverride bool) (any, *fserr.Error) {
	field, err := requireField(p)
	if err != nil {
		return nil, err
	}

	var overwritten bool
	if p.Entity == vpath.EntityAgent {
		ap := b.Store.GetOrCreateAgent(p.ID)
		current, _ := profile.ReadAgentField(ap, field)
		if !allowOverride && current != "" {
			return nil, fserr.AlreadyExists(fmt.Sprintf("managed field `%s` already contains content", field))
		}
		profile.WriteAgentField(&ap, field, content)
		ap.SpecVersion = 0
		ap.UpdatedAtMs = 0
		b.Store.UpsertAgent(ap)
		overwritten = current != ""
	} else {
		up := b.Store.GetOrCreateUser(p.ID)
		current, _ := profile.ReadUserField(up, field)
		if !allowOverride && current != "" {
			return nil, fserr.AlreadyExists(fmt.Sprintf("managed field `%s` already contains content", field))
		}
		profile.WriteUserField(&up, field, content)
		up.UpdatedAtMs = 0
		b.Store.UpsertUser(up)
		overwritten = current != ""
	}

	return map[string]any{
		"bytes_written": len(content),
		"created":       !overwritten,
		"overwritten":   overwritten,
	}, nil
}

func (b *ManagedBackend) replace(p vpath.Parsed, old, new string, mode ReplaceMode) (any, *fserr.Error) {
	if old == "" {
		return nil, fserr.InvalidArgs("replace.old must be non-empty")
	}

	field, err := requireField(p)
	if err != nil {
		return nil, err
	}

	var updated string
	var replacements int
	if p.Entity == vpath.EntityAgent {
		ap := b.Store.GetOrCreateAgent(p.ID)
		current, _ := profile.ReadAgentField(ap, field)
		updated, replacements = applyReplace(current, old, new, mode)
		profile.WriteAgentField(&ap, field, updated)
		ap.SpecVersion = 0
		ap.UpdatedAtMs = 0
		b.Store.UpsertAgent(ap)
	} else {
		up := b.Store.GetOrCreateUser(p.ID)
		current, _ := profile.ReadUserField(up, field)
		updated, replacements = applyReplace(current, old, new, mode)
		profile.WriteUserField(&up, field, updated)
		up.UpdatedAtMs = 0
		b.Store.UpsertUser(up)
	}

	return map[string]any{"replacements": replacements, "bytes": len(updated)}, nil
}

func requireField(p vpath.Parsed) (string, *fserr.Error) {
	if p.Field == "" {
		return "", fserr.NotFile("managed entity root is a directory; choose a concrete field path")
	}
	if !validField(p.Entity, p.Field) {
		return "", invalidField(p.Entity, p.Field)
	}
	return p.Field, nil
}

func validField(entity vpath.Entity, field string) bool {
	if entity == vpath.EntityAgent {
		return profile.IsAgentField(field)
	}
	return profile.IsUserField(field)
}

func invalidField(entity vpath.Entity, field string) *fserr.Error {
	return fserr.InvalidPath(fmt.Sprintf("field `%s` is not supported for %s profiles", field, entity.String()))
}

// applyReplace mirrors fathom-server's managed/real replace semantics:
// All replaces every occurrence and counts matches up front; First splices
// only the first occurrence (or leaves content untouched if old isn't found).
func applyReplace(current, old, new string, mode ReplaceMode) (string, int) {
	switch mode {
	case ReplaceModeAll:
		n := strings.Count(current, old)
		return strings.ReplaceAll(current, old, new), n
	default: // ReplaceModeFirst
		idx := strings.Index(current, old)
		if idx < 0 {
			return current, 0
		}
		return current[:idx] + new + current[idx+len(old):], 1
	}
}
