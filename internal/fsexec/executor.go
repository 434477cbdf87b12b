package fsexec

import (
	"encoding/json"
	"fmt"

	"github.com/fathom-run/fathom/internal/fsexec/fserr"
	"github.com/fathom-run/fathom/internal/profile"
	"github.com/fathom-run/fathom/internal/vpath"
)

// ReplaceMode selects whether fs_replace rewrites every occurrence or only
// the first.
type ReplaceMode int

const (
	ReplaceModeFirst ReplaceMode = iota
	ReplaceModeAll
)

func ParseReplaceMode(s string) (ReplaceMode, error) {
	switch s {
	case "first":
		return ReplaceModeFirst, nil
	case "all":
		return ReplaceModeAll, nil
	default:
		return 0, fmt.Errorf("replace.mode must be \"first\" or \"all\", got %q", s)
	}
}

// Executor dispatches the four fs_* tools by name, routing managed:// and
// fs:// paths to their respective backends.
type Executor struct {
	Managed *ManagedBackend
	Real    *RealBackend
}

func NewExecutor(store *profile.Store, workspaceRoot string) *Executor {
	return &Executor{
		Managed: &ManagedBackend{Store: store},
		Real:    &RealBackend{WorkspaceRoot: workspaceRoot},
	}
}

// Execute dispatches toolName against argsJSON, returning ok=false if
// toolName isn't one of fs_list/fs_read/fs_write/fs_replace.
func (e *Executor) Execute(toolName, argsJSON string) (Outcome, bool) {
	switch toolName {
	case "fs_list":
		return e.execList(argsJSON), true
	case "fs_read":
		return e.execRead(argsJSON), true
	case "fs_write":
		return e.execWrite(argsJSON), true
	case "fs_replace":
		return e.execReplace(argsJSON), true
	default:
		return Outcome{}, false
	}
}

type listArgs struct {
	Path string `json:"path"`
}

type readArgs struct {
	Path string `json:"path"`
}

type writeArgs struct {
	Path          string `json:"path"`
	Content       string `json:"content"`
	AllowOverride bool   `json:"allow_override"`
}

type replaceArgs struct {
	Path string `json:"path"`
	Old  string `json:"old"`
	New  string `json:"new"`
	Mode string `json:"mode"`
}

func (e *Executor) execList(argsJSON string) Outcome {
	var args listArgs
	if err := parseArgs(argsJSON, "fs_list", &args); err != nil {
		return failure("list", nil, err, nil)
	}
	parsed, perr := vpath.Parse(args.Path)
	if perr != nil {
		return failure("list", &args.Path, asFsErr(perr), nil)
	}
	return e.dispatch("list", parsed, func() (any, *fserr.Error) {
		if parsed.Kind == vpath.KindManaged {
			return e.Managed.list(parsed)
		}
		return e.Real.list(parsed)
	})
}

func (e *Executor) execRead(argsJSON string) Outcome {
	var args readArgs
	if err := parseArgs(argsJSON, "fs_read", &args); err != nil {
		return failure("read", nil, err, nil)
	}
	parsed, perr := vpath.Parse(args.Path)
	if perr != nil {
		return failure("read", &args.Path, asFsErr(perr), nil)
	}
	return e.dispatch("read", parsed, func() (any, *fserr.Error) {
		if parsed.Kind == vpath.KindManaged {
			return e.Managed.read(parsed)
		}
		return e.Real.read(parsed)
	})
}

func (e *Executor) execWrite(argsJSON string) Outcome {
	var args writeArgs
	if err := parseArgs(argsJSON, "fs_write", &args); err != nil {
		return failure("write", nil, err, nil)
	}
	parsed, perr := vpath.Parse(args.Path)
	if perr != nil {
		return failure("write", &args.Path, asFsErr(perr), nil)
	}
	return e.dispatch("write", parsed, func() (any, *fserr.Error) {
		if parsed.Kind == vpath.KindManaged {
			return e.Managed.write(parsed, args.Content, args.AllowOverride)
		}
		return e.Real.write(parsed, args.Content, args.AllowOverride)
	})
}

func (e *Executor) execReplace(argsJSON string) Outcome {
	var args replaceArgs
	if err := parseArgs(argsJSON, "fs_replace", &args); err != nil {
		return failure("replace", nil, err, nil)
	}
	mode, modeErr := ParseReplaceMode(args.Mode)
	if modeErr != nil {
		return failure("replace", &args.Path, fserr.InvalidArgs(modeErr.Error()), nil)
	}
	parsed, perr := vpath.Parse(args.Path)
	if perr != nil {
		return failure("replace", &args.Path, asFsErr(perr), nil)
	}
	return e.dispatch("replace", parsed, func() (any, *fserr.Error) {
		if parsed.Kind == vpath.KindManaged {
			return e.Managed.replace(parsed, args.Old, args.New, mode)
		}
		return e.Real.replace(parsed, args.Old, args.New, mode)
	})
}

func (e *Executor) dispatch(op string, p vpath.Parsed, fn func() (any, *fserr.Error)) Outcome {
	target := p.TargetLabel()
	data, err := fn()
	if err != nil {
		return failure(op, &p.NormalizedURI, err, &target)
	}
	return success(op, p.NormalizedURI, target, data)
}

func parseArgs(argsJSON, toolName string, v any) *fserr.Error {
	if jsonErr := json.Unmarshal([]byte(argsJSON), v); jsonErr != nil {
		return fserr.InvalidArgs(fmt.Sprintf("failed to parse args for `%s`: %v", toolName, jsonErr))
	}
	return nil
}

func asFsErr(err error) *fserr.Error {
	if fe, ok := fserr.As(err); ok {
		return fe
	}
	return fserr.InvalidPath(err.Error())
}
