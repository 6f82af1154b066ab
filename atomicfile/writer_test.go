package atomicfile

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWrite_CreatesFileAndParentDirs(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "nested", "out.txt")

	if err := Write(dest, []byte("hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("unexpected error reading back: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", got)
	}
}

func TestWrite_NeverLeavesPartialFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")
	if err := Write(dest, []byte("v1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := WriteFrom(dest, func(w io.Writer) error {
		return os.ErrClosed
	})
	if err == nil {
		t.Fatal("expected error from failing stream callback")
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("unexpected error reading back: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("expected original content preserved, got %q", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("expected no leftover temp file, found %s", e.Name())
		}
	}
}

func TestWriteWithChecksum_ProducesVerifiableSidecar(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "data.bin")

	if err := WriteWithChecksum(dest, []byte("payload")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, err := VerifyChecksum(dest)
	if err != nil {
		t.Fatalf("unexpected error verifying: %v", err)
	}
	if !ok {
		t.Fatal("expected checksum to verify")
	}
}

func TestVerifyChecksum_FailsAfterTamper(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "data.bin")
	if err := WriteWithChecksum(dest, []byte("payload")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(dest, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("unexpected error tampering: %v", err)
	}

	ok, err := VerifyChecksum(dest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected checksum verification to fail after tamper")
	}
}

func TestReplace_RemovesBackupWhenNotKept(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "config.json")
	if err := Write(dest, []byte("original")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := Replace(dest, []byte("updated"), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "updated" {
		t.Fatalf("expected updated content, got %q", got)
	}
	if _, err := os.Stat(dest + ".bak"); !os.IsNotExist(err) {
		t.Fatal("expected backup to be removed when keepBackup is false")
	}
}

func TestReplace_KeepsBackupWhenRequested(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "config.json")
	if err := Write(dest, []byte("original")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Replace(dest, []byte("updated"), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	backup, err := os.ReadFile(dest + ".bak")
	if err != nil {
		t.Fatalf("expected backup to exist: %v", err)
	}
	if string(backup) != "original" {
		t.Fatalf("expected backup to hold original content, got %q", backup)
	}
}
