package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfirmDeletePrompt(t *testing.T) {
	t.Parallel()

	t.Run("accepts exact Y", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		confirmed, err := confirmDeletePrompt(strings.NewReader("Y\n"), &out, "./recap.db")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !confirmed {
			t.Fatalf("expected confirmation")
		}
		if !strings.Contains(out.String(), "recap.db") {
			t.Fatalf("prompt does not mention database path: %q", out.String())
		}
	})

	t.Run("rejects anything else", func(t *testing.T) {
		t.Parallel()
		for _, input := range []string{"y\n", "yes\n", "\n", "N\n"} {
			confirmed, err := confirmDeletePrompt(strings.NewReader(input), nil, "./recap.db")
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", input, err)
			}
			if confirmed {
				t.Fatalf("input %q must not confirm deletion", input)
			}
		}
	})
}

func TestRemoveDatabaseFile(t *testing.T) {
	t.Parallel()

	t.Run("removes existing file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "recap.db")
		if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		if err := removeDatabaseFile(path); err != nil {
			t.Fatalf("remove: %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("expected file to be gone")
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		t.Parallel()
		if err := removeDatabaseFile(filepath.Join(t.TempDir(), "missing.db")); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("directory is an error", func(t *testing.T) {
		t.Parallel()
		if err := removeDatabaseFile(t.TempDir()); err == nil {
			t.Fatalf("expected error")
		}
	})
}
