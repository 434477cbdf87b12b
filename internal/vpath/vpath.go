// Package vpath parses the two virtual path schemes tools use to address
// profile fields and workspace files: managed://<agent|user>/<id>[/<field>]
// and fs://<workspace-relative-path>.
package vpath

import (
	"strings"

	"github.com/fathom-run/fathom/internal/fsexec/fserr"
)

const (
	managedPrefix = "managed://"
	realPrefix    = "fs://"
)

// Entity names the managed-path target kind.
type Entity int

const (
	EntityAgent Entity = iota
	EntityUser
)

func (e Entity) String() string {
	if e == EntityUser {
		return "user"
	}
	return "agent"
}

// Kind distinguishes a parsed path's backend.
type Kind int

const (
	KindManaged Kind = iota
	KindReal
)

// Parsed is the tagged result of parsing a managed:// or fs:// path.
type Parsed struct {
	Kind Kind

	// Managed fields, set when Kind == KindManaged.
	Entity Entity
	ID     string
	Field  string // empty means "no field selected"

	// Real fields, set when Kind == KindReal.
	RelPath string // "." for the workspace root, else slash-joined segments

	NormalizedURI string
}

// TargetLabel returns "managed" or "fs", matching the outcome envelope's
// "target" field.
func (p Parsed) TargetLabel() string {
	if p.Kind == KindManaged {
		return "managed"
	}
	return "fs"
}

func Parse(path string) (Parsed, error) {
	if rest, ok := strings.CutPrefix(path, managedPrefix); ok {
		return parseManaged(rest)
	}
	if rest, ok := strings.CutPrefix(path, realPrefix); ok {
		return parseReal(rest)
	}
	return Parsed{}, fserr.InvalidPath("path must use managed:// or fs:// prefix")
}

func parseManaged(rest string) (Parsed, error) {
	var segments []string
	for _, s := range strings.Split(rest, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) < 2 || len(segments) > 3 {
		return Parsed{}, fserr.InvalidPath("managed path must be managed://<agent|user>/<id>[/<field>]")
	}

	var entity Entity
	switch segments[0] {
	case "agent":
		entity = EntityAgent
	case "user":
		entity = EntityUser
	default:
		return Parsed{}, fserr.InvalidPath("managed path entity must be `agent` or `user`")
	}

	id := strings.TrimSpace(segments[1])
	if id == "" {
		return Parsed{}, fserr.InvalidPath("managed path target id must be non-empty")
	}

	field := ""
	if len(segments) == 3 {
		field = segments[2]
	}

	uri := managedPrefix + entity.String() + "/" + id
	if field != "" {
		uri += "/" + field
	}

	return Parsed{
		Kind:          KindManaged,
		Entity:        entity,
		ID:            id,
		Field:         field,
		NormalizedURI: uri,
	}, nil
}

func parseReal(rest string) (Parsed, error) {
	if strings.HasPrefix(rest, "/") || strings.HasPrefix(rest, "\\") {
		return Parsed{}, fserr.InvalidPath("fs:// path must be workspace-relative, not absolute")
	}

	var segments []string
	for _, raw := range strings.Split(rest, "/") {
		for _, part := range strings.Split(raw, "\\") {
			switch part {
			case "", ".":
				// skip
			case "..":
				if len(segments) == 0 {
					return Parsed{}, fserr.PermissionDenied("fs:// path escapes workspace root")
				}
				segments = segments[:len(segments)-1]
			default:
				segments = append(segments, part)
			}
		}
	}

	relPath := "."
	relURI := "."
	if len(segments) > 0 {
		relPath = strings.Join(segments, "/")
		relURI = relPath
	}

	return Parsed{
		Kind:          KindReal,
		RelPath:       relPath,
		NormalizedURI: realPrefix + relURI,
	}, nil
}
