// Package atomicfile produces whole-file artifacts durably: a reader
// observes either the previous file or the fully written new one, never a
// truncated intermediate. It backs manifest writes, checksum sidecars, and
// any other small-to-medium whole-file output in the collector.
package atomicfile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// Write writes data to dest by staging it in a uniquely-named sibling temp
// file, fsyncing the temp file, renaming it over dest, and (on POSIX)
// fsyncing the containing directory so the rename itself is durable.
// Parent directories are created as needed.
func Write(dest string, data []byte) error {
	return WriteFrom(dest, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteFrom is like Write but streams from a callback instead of holding
// the whole payload in memory.
func WriteFrom(dest string, stream func(io.Writer) error) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("atomicfile: creating parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("atomicfile: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := stream(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("atomicfile: writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("atomicfile: fsyncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("atomicfile: closing temp file: %w", err)
	}
	tmp = nil // rename succeeded or not, nothing left to clean up by name

	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("atomicfile: renaming into place: %w", err)
	}
	return fsyncDir(dir)
}

// WriteWithChecksum writes data to dest, then recomputes its SHA-256 and
// fails if it disagrees with the pre-write digest, then emits a sidecar
// "<dest>.sha256" containing "<hex>  <basename>\n".
func WriteWithChecksum(dest string, data []byte) error {
	want := sha256.Sum256(data)
	if err := Write(dest, data); err != nil {
		return err
	}

	got, err := hashFile(dest)
	if err != nil {
		return fmt.Errorf("atomicfile: verifying written file: %w", err)
	}
	if got != want {
		return fmt.Errorf("atomicfile: checksum mismatch for %s after write", dest)
	}

	sidecar := fmt.Sprintf("%s  %s\n", hex.EncodeToString(want[:]), filepath.Base(dest))
	return Write(dest+".sha256", []byte(sidecar))
}

// Replace writes data to dest, first renaming any existing dest to
// "<dest>.bak". If anything fails after the backup is taken and dest is
// left absent, the backup is restored. When keepBackup is false the backup
// is removed once the new file is safely in place.
func Replace(dest string, data []byte, keepBackup bool) error {
	backup := dest + ".bak"
	hadOriginal := false
	if _, err := os.Stat(dest); err == nil {
		hadOriginal = true
		if err := os.Rename(dest, backup); err != nil {
			return fmt.Errorf("atomicfile: backing up existing file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("atomicfile: checking existing file: %w", err)
	}

	if err := Write(dest, data); err != nil {
		if hadOriginal {
			if _, statErr := os.Stat(dest); os.IsNotExist(statErr) {
				_ = os.Rename(backup, dest)
			}
		}
		return err
	}

	if hadOriginal && !keepBackup {
		_ = os.Remove(backup)
	}
	return nil
}

// VerifyChecksum returns true iff the sidecar for path exists and its
// recorded digest matches the file's current contents.
func VerifyChecksum(path string) (bool, error) {
	sidecarPath := path + ".sha256"
	raw, err := os.ReadFile(sidecarPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("atomicfile: reading sidecar: %w", err)
	}
	var wantHex string
	if _, err := fmt.Sscanf(string(raw), "%s", &wantHex); err != nil {
		return false, fmt.Errorf("atomicfile: parsing sidecar: %w", err)
	}

	got, err := hashFile(path)
	if err != nil {
		return false, fmt.Errorf("atomicfile: hashing file: %w", err)
	}
	return hex.EncodeToString(got[:]) == wantHex, nil
}

func hashFile(path string) ([sha256.Size]byte, error) {
	var sum [sha256.Size]byte
	f, err := os.Open(path)
	if err != nil {
		return sum, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return sum, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// fsyncDir fsyncs a directory so a preceding rename within it is durable.
// Omitted on Windows: NTFS journals metadata automatically and does not
// support opening a directory with os.Open for Sync.
func fsyncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("atomicfile: opening directory for fsync: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("atomicfile: fsyncing directory: %w", err)
	}
	return nil
}
