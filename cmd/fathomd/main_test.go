package main

import "testing"

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"serve", "sessions"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestSessionsCmdIncludesSubcommands(t *testing.T) {
	root := buildRootCmd()

	for _, sub := range root.Commands() {
		if sub.Name() != "sessions" {
			continue
		}
		names := map[string]bool{}
		for _, grand := range sub.Commands() {
			names[grand.Name()] = true
		}
		for _, name := range []string{"create", "list", "enqueue"} {
			if !names[name] {
				t.Fatalf("expected sessions subcommand %q to be registered", name)
			}
		}
		return
	}
	t.Fatalf("expected sessions command to be registered")
}
