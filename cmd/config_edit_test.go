package cmd

import (
	"path/filepath"
	"testing"
)

func TestResolveConfigEditPath(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		got, err := resolveConfigEditPath("./custom.yaml", "/home/user/.recap.yaml")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "./custom.yaml" {
			t.Fatalf("expected flag path, got %q", got)
		}
	})

	t.Run("active config file second", func(t *testing.T) {
		got, err := resolveConfigEditPath("", "/home/user/.recap.yaml")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "/home/user/.recap.yaml" {
			t.Fatalf("expected active config path, got %q", got)
		}
	})

	t.Run("home fallback", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		got, err := resolveConfigEditPath("", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != filepath.Join(home, ".recap.yaml") {
			t.Fatalf("unexpected fallback path: %q", got)
		}
	})
}

func TestResolveEditorValue(t *testing.T) {
	t.Parallel()

	if got := resolveEditorValue("code --wait", "nano"); got != "code --wait" {
		t.Fatalf("expected VISUAL to win, got %q", got)
	}
	if got := resolveEditorValue("", "nano"); got != "nano" {
		t.Fatalf("expected EDITOR fallback, got %q", got)
	}
	if got := resolveEditorValue("", ""); got != "vi" {
		t.Fatalf("expected vi fallback, got %q", got)
	}
}

func TestBuildEditorCommand(t *testing.T) {
	t.Parallel()

	cmd, err := buildEditorCommand("code --wait", "/tmp/.recap.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cmd.Args) != 3 || cmd.Args[1] != "--wait" || cmd.Args[2] != "/tmp/.recap.yaml" {
		t.Fatalf("unexpected editor args: %v", cmd.Args)
	}

	if _, err := buildEditorCommand("   ", "/tmp/.recap.yaml"); err == nil {
		t.Fatalf("expected error for empty editor command")
	}
}
