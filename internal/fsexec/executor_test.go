package fsexec

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/fathom-run/fathom/internal/clock"
	"github.com/fathom-run/fathom/internal/profile"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	store := profile.NewStore(clock.System{})
	return NewExecutor(store, t.TempDir())
}

func decodeData(t *testing.T, msg string) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(msg), &payload); err != nil {
		t.Fatalf("invalid json payload: %v", err)
	}
	data, _ := payload["data"].(map[string]any)
	return data
}

func TestFsToolsWriteAndReadManagedAgentField(t *testing.T) {
	exec := newTestExecutor(t)

	writeOutcome, ok := exec.Execute("fs_write", `{"path":"managed://agent/agent-a/long_term_memory_md","content":"hello memory","allow_override":true}`)
	if !ok || !writeOutcome.Succeeded {
		t.Fatalf("expected fs_write to succeed, got %+v", writeOutcome)
	}

	readOutcome, ok := exec.Execute("fs_read", `{"path":"managed://agent/agent-a/long_term_memory_md"}`)
	if !ok || !readOutcome.Succeeded {
		t.Fatalf("expected fs_read to succeed, got %+v", readOutcome)
	}

	data := decodeData(t, readOutcome.Message)
	if data["content"] != "hello memory" {
		t.Fatalf("expected content %q, got %v", "hello memory", data["content"])
	}
}

func TestFsToolsReplaceSupportsModeSwitch(t *testing.T) {
	exec := newTestExecutor(t)

	if out, ok := exec.Execute("fs_write", `{"path":"fs://notes.txt","content":"a a a","allow_override":true}`); !ok || !out.Succeeded {
		t.Fatalf("expected initial fs_write to succeed, got %+v", out)
	}

	if out, ok := exec.Execute("fs_replace", `{"path":"fs://notes.txt","old":"a","new":"z","mode":"first"}`); !ok || !out.Succeeded {
		t.Fatalf("expected first-mode replace to succeed, got %+v", out)
	}
	read, _ := exec.Execute("fs_read", `{"path":"fs://notes.txt"}`)
	if got := decodeData(t, read.Message)["content"]; got != "z a a" {
		t.Fatalf("expected %q after first replace, got %v", "z a a", got)
	}

	if out, ok := exec.Execute("fs_replace", `{"path":"fs://notes.txt","old":"a","new":"x","mode":"all"}`); !ok || !out.Succeeded {
		t.Fatalf("expected all-mode replace to succeed, got %+v", out)
	}
	read, _ = exec.Execute("fs_read", `{"path":"fs://notes.txt"}`)
	if got := decodeData(t, read.Message)["content"]; got != "z x x" {
		t.Fatalf("expected %q after all replace, got %v", "z x x", got)
	}
}

func TestFsToolsRejectWorkspaceEscape(t *testing.T) {
	exec := newTestExecutor(t)

	outcome, ok := exec.Execute("fs_read", `{"path":"fs://../../etc/passwd"}`)
	if !ok {
		t.Fatalf("expected fs_read to dispatch")
	}
	if outcome.Succeeded {
		t.Fatalf("expected workspace escape to fail")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(outcome.Message), &payload); err != nil {
		t.Fatalf("invalid json payload: %v", err)
	}
	if code, _ := payload["error_code"].(string); code == "" {
		t.Fatalf("expected a non-empty error_code")
	}
}

func TestFsToolsWriteRejectsOverwriteWithoutAllowOverride(t *testing.T) {
	exec := newTestExecutor(t)
	path := `{"path":"fs://notes.txt","content":"first","allow_override":false}`
	if out, ok := exec.Execute("fs_write", path); !ok || !out.Succeeded {
		t.Fatalf("expected first write to succeed, got %+v", out)
	}
	out, ok := exec.Execute("fs_write", path)
	if !ok || out.Succeeded {
		t.Fatalf("expected second write without allow_override to fail, got %+v", out)
	}
}

func TestFsToolsWriteCreatesParentDirectories(t *testing.T) {
	exec := newTestExecutor(t)
	out, ok := exec.Execute("fs_write", `{"path":"fs://nested/dir/file.txt","content":"x","allow_override":false}`)
	if !ok || !out.Succeeded {
		t.Fatalf("expected nested write to succeed, got %+v", out)
	}
}

func TestFsToolsListSortsRealEntries(t *testing.T) {
	exec := newTestExecutor(t)
	root := exec.Real.WorkspaceRoot
	for _, name := range []string{"b.txt", "a.txt"} {
		if out, ok := exec.Execute("fs_write", `{"path":"fs://`+name+`","content":"x","allow_override":false}`); !ok || !out.Succeeded {
			t.Fatalf("setup write failed: %+v", out)
		}
	}
	out, ok := exec.Execute("fs_list", `{"path":"fs://."}`)
	if !ok || !out.Succeeded {
		t.Fatalf("expected list to succeed, got %+v", out)
	}
	data := decodeData(t, out.Message)
	entries, _ := data["entries"].([]any)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d (root=%s)", len(entries), filepath.Clean(root))
	}
	first := entries[0].(map[string]any)
	if first["name"] != "a.txt" {
		t.Fatalf("expected a.txt to sort first, got %v", first["name"])
	}
}
