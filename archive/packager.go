// Package archive produces self-contained, verifiable zip packages of a
// subset of the collector's on-disk event files, and extracts/verifies
// packages produced elsewhere.
package archive

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/atomicfile"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/monitoring"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/security"
)

// currentManifestVersion identifies the manifest.json schema version this
// package writes. Bump it whenever a field is added, renamed, or removed.
const currentManifestVersion = 1

// knownEventTypes is the closed set of event.Type string values. Kept as a
// local copy rather than importing event to avoid a dependency cycle risk
// as this package grows; the values are part of the wire contract anyway.
var knownEventTypes = []string{"Trade", "BboQuote", "Depth", "L2Snapshot", "HistoricalBar", "Other"}

var eventFields = map[string][]string{
	"Trade":         {"price", "size", "aggressor", "sequence_number", "venue"},
	"BboQuote":      {"bid_price", "bid_size", "ask_price", "ask_size", "spread"},
	"Depth":         {"bids", "asks"},
	"L2Snapshot":    {"bids", "asks"},
	"HistoricalBar": {"open", "high", "low", "close", "volume"},
	"Other":         {"fields"},
}

var pathSegmentPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,12}$`)

// Filter selects which on-disk files Create includes in a package.
type Filter struct {
	Symbols    []string
	EventTypes []string
	From       time.Time
	To         time.Time
}

func (f Filter) matchesPath(path string) bool {
	segments := pathSegments(path)
	if len(f.Symbols) > 0 && !containsAny(segments, f.Symbols) {
		return false
	}
	if len(f.EventTypes) > 0 && !containsAny(segments, f.EventTypes) {
		return false
	}
	return true
}

func (f Filter) matchesModTime(t time.Time) bool {
	if !f.From.IsZero() && t.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.After(f.To) {
		return false
	}
	return true
}

func pathSegments(path string) []string {
	return strings.Split(filepath.ToSlash(path), "/")
}

func containsAny(haystack, needles []string) bool {
	for _, n := range needles {
		for _, h := range haystack {
			if strings.EqualFold(h, n) {
				return true
			}
		}
	}
	return false
}

// ManifestEntry describes one packaged file.
type ManifestEntry struct {
	RelativePath string    `json:"relative_path"`
	Size         int64     `json:"size"`
	SHA256       string    `json:"sha256"`
	LastModified time.Time `json:"last_modified"`
}

// ManifestTotals summarizes the package's contents for a reader that
// doesn't want to sum Files itself.
type ManifestTotals struct {
	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`
}

// Manifest is the package's manifest.json contract.
type Manifest struct {
	ManifestVersion int            `json:"manifest_version"`
	PackageName     string         `json:"package_name"`
	CreatedAt       time.Time      `json:"created_at"`
	Symbols         []string       `json:"symbols"`
	DateRangeStart  time.Time      `json:"date_range_start"`
	DateRangeEnd    time.Time      `json:"date_range_end"`
	Totals          ManifestTotals `json:"totals"`
	Encrypted       bool           `json:"encrypted"`
	Algorithm       string         `json:"algorithm,omitempty"`
	Files           []ManifestEntry `json:"files"`
}

type config struct {
	verifyAfterCreation bool
	encryptor           security.Encryptor
}

// Option customizes Create.
type Option func(*config)

// WithVerifyAfterCreation re-opens the freshly written zip and recomputes
// every entry's SHA-256 against the manifest before Create returns.
func WithVerifyAfterCreation(enabled bool) Option {
	return func(c *config) { c.verifyAfterCreation = enabled }
}

// WithEncryption encrypts every data/<relpath> entry's bytes with enc
// before they enter the zip. manifest.json itself is never encrypted, so
// verification metadata remains readable without the key.
func WithEncryption(enc security.Encryptor) Option {
	return func(c *config) { c.encryptor = enc }
}

var zipEntryPattern = regexp.MustCompile(`\.(jsonl|jsonl\.gz|parquet)$`)

// Create enumerates event files under dataRoot matching filter, and writes
// a self-contained zip package (manifest, checksums, schemas, README, and
// the data files themselves) to destZipPath.
func Create(dataRoot string, filter Filter, destZipPath string, opts ...Option) error {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var entries []ManifestEntry
	var packagedData [][]byte
	symbolsPresent := map[string]bool{}

	err := filepath.Walk(dataRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !zipEntryPattern.MatchString(path) {
			return nil
		}
		if !filter.matchesPath(path) || !filter.matchesModTime(info.ModTime()) {
			return nil
		}

		rel, err := filepath.Rel(dataRoot, path)
		if err != nil {
			return fmt.Errorf("archive: computing relative path for %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("archive: reading %s: %w", path, err)
		}
		packaged := raw
		if cfg.encryptor != nil {
			packaged, err = cfg.encryptor.Encrypt(raw)
			if err != nil {
				return fmt.Errorf("archive: encrypting %s: %w", path, err)
			}
		}

		entries = append(entries, ManifestEntry{
			RelativePath: rel,
			Size:         int64(len(packaged)),
			SHA256:       sha256HexOf(packaged),
			LastModified: info.ModTime().UTC(),
		})
		packagedData = append(packagedData, packaged)

		for _, seg := range pathSegments(rel) {
			if pathSegmentPattern.MatchString(seg) {
				symbolsPresent[seg] = true
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("archive: enumerating %s: %w", dataRoot, err)
	}

	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return entries[order[i]].RelativePath < entries[order[j]].RelativePath })
	sortedEntries := make([]ManifestEntry, len(entries))
	sortedData := make([][]byte, len(entries))
	for newIdx, oldIdx := range order {
		sortedEntries[newIdx] = entries[oldIdx]
		sortedData[newIdx] = packagedData[oldIdx]
	}
	entries, packagedData = sortedEntries, sortedData

	var totalBytes int64
	for _, e := range entries {
		totalBytes += e.Size
	}

	manifest := Manifest{
		ManifestVersion: currentManifestVersion,
		PackageName:     packageNameFor(destZipPath),
		CreatedAt:       time.Now().UTC(),
		Symbols:         sortedKeys(symbolsPresent),
		Totals:          ManifestTotals{Files: len(entries), Bytes: totalBytes},
		Encrypted:       cfg.encryptor != nil,
	}
	if manifest.Encrypted {
		manifest.Algorithm = cfg.encryptor.Algorithm()
	}
	if len(entries) > 0 {
		manifest.DateRangeStart = entries[0].LastModified
		manifest.DateRangeEnd = entries[0].LastModified
		for _, e := range entries {
			if e.LastModified.Before(manifest.DateRangeStart) {
				manifest.DateRangeStart = e.LastModified
			}
			if e.LastModified.After(manifest.DateRangeEnd) {
				manifest.DateRangeEnd = e.LastModified
			}
		}
	}
	manifest.Files = entries

	if err := atomicfile.WriteFrom(destZipPath, func(w io.Writer) error {
		return writeZip(w, manifest, packagedData)
	}); err != nil {
		monitoring.RecordArchivePackage("create", false)
		return err
	}

	if cfg.verifyAfterCreation {
		if _, err := Verify(destZipPath); err != nil {
			monitoring.RecordArchivePackage("create", false)
			return fmt.Errorf("archive: post-creation verification: %w", err)
		}
	}
	monitoring.RecordArchivePackage("create", true)
	return nil
}

// packageNameFor derives a manifest's package_name from its destination
// zip path: the base filename, minus its extension.
func packageNameFor(destZipPath string) string {
	base := filepath.Base(destZipPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func writeZip(w io.Writer, manifest Manifest, packagedData [][]byte) error {
	zw := zip.NewWriter(w)

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("archive: marshaling manifest: %w", err)
	}
	if err := writeZipEntry(zw, "manifest.json", manifestJSON); err != nil {
		return err
	}

	var checksums strings.Builder
	for _, e := range manifest.Files {
		fmt.Fprintf(&checksums, "%s  data/%s\n", e.SHA256, e.RelativePath)
	}
	if err := writeZipEntry(zw, "checksums.sha256", []byte(checksums.String())); err != nil {
		return err
	}

	presentTypes := map[string]bool{}
	for seg := range schemasFor(manifest) {
		presentTypes[seg] = true
	}
	if len(presentTypes) == 0 {
		presentTypes["Other"] = true
	}
	for _, t := range sortedKeys(presentTypes) {
		schema, err := json.MarshalIndent(map[string]any{"event_type": t, "fields": eventFields[t]}, "", "  ")
		if err != nil {
			return fmt.Errorf("archive: marshaling schema for %s: %w", t, err)
		}
		if err := writeZipEntry(zw, fmt.Sprintf("schemas/%s.json", t), schema); err != nil {
			return err
		}
	}

	readme := fmt.Sprintf(
		"Market data archive\nCreated: %s\nFiles: %d\nSymbols: %s\n\nVerify with the mdc-archivist package-verify command, or recompute each\ndata/<path> entry's SHA-256 and compare against checksums.sha256.\n",
		manifest.CreatedAt.Format(time.RFC3339), len(manifest.Files), strings.Join(manifest.Symbols, ", "),
	)
	if err := writeZipEntry(zw, "README.txt", []byte(readme)); err != nil {
		return err
	}

	for i, e := range manifest.Files {
		if err := writeZipEntry(zw, "data/"+e.RelativePath, packagedData[i]); err != nil {
			return err
		}
	}

	return zw.Close()
}

func schemasFor(manifest Manifest) map[string]bool {
	present := map[string]bool{}
	for _, e := range manifest.Files {
		for _, seg := range pathSegments(e.RelativePath) {
			for _, t := range knownEventTypes {
				if strings.EqualFold(seg, t) {
					present[t] = true
				}
			}
		}
	}
	return present
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("archive: creating zip entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("archive: writing zip entry %s: %w", name, err)
	}
	return nil
}

// VerifyReport summarizes a Verify call over a package's manifest.
type VerifyReport struct {
	TotalFiles    int
	MatchedFiles  int
	MismatchFiles []string
}

// Verify re-opens a package and recomputes every data/<relpath> entry's
// SHA-256 against manifest.json, without extracting anything to disk.
func Verify(zipPath string) (VerifyReport, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return VerifyReport{}, fmt.Errorf("archive: opening package: %w", err)
	}
	defer r.Close()

	manifest, err := readManifest(&r.Reader)
	if err != nil {
		return VerifyReport{}, err
	}

	byName := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		byName[f.Name] = f
	}

	report := VerifyReport{TotalFiles: len(manifest.Files)}
	for _, e := range manifest.Files {
		entryName := "data/" + e.RelativePath
		f, ok := byName[entryName]
		if !ok {
			report.MismatchFiles = append(report.MismatchFiles, e.RelativePath)
			continue
		}
		sum, err := hashZipEntry(f)
		if err != nil {
			return report, fmt.Errorf("archive: hashing packaged entry %s: %w", e.RelativePath, err)
		}
		if sum != e.SHA256 {
			report.MismatchFiles = append(report.MismatchFiles, e.RelativePath)
			continue
		}
		report.MatchedFiles++
	}

	if len(report.MismatchFiles) > 0 {
		monitoring.RecordArchivePackage("verify", false)
		return report, fmt.Errorf("%w: %d of %d files", ErrManifestMismatch, len(report.MismatchFiles), report.TotalFiles)
	}
	monitoring.RecordArchivePackage("verify", true)
	return report, nil
}

// Extract writes every data/<relpath> entry into targetDir, rejecting any
// entry whose resolved path would escape targetDir, then verifies each
// extracted file's SHA-256 against manifest.json.
func Extract(zipPath, targetDir string) (VerifyReport, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return VerifyReport{}, fmt.Errorf("archive: opening package: %w", err)
	}
	defer r.Close()

	manifest, err := readManifest(&r.Reader)
	if err != nil {
		return VerifyReport{}, err
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return VerifyReport{}, fmt.Errorf("archive: creating target directory: %w", err)
	}

	byName := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		byName[f.Name] = f
	}

	report := VerifyReport{TotalFiles: len(manifest.Files)}
	for _, e := range manifest.Files {
		entryName := "data/" + e.RelativePath
		f, ok := byName[entryName]
		if !ok {
			report.MismatchFiles = append(report.MismatchFiles, e.RelativePath)
			continue
		}

		destPath := filepath.Join(targetDir, filepath.FromSlash(e.RelativePath))
		if !withinDir(targetDir, destPath) {
			return report, fmt.Errorf("%w: %s", ErrPathTraversal, e.RelativePath)
		}

		data, err := readZipEntry(f)
		if err != nil {
			return report, fmt.Errorf("archive: reading packaged entry %s: %w", e.RelativePath, err)
		}
		if err := atomicfile.Write(destPath, data); err != nil {
			return report, fmt.Errorf("archive: writing %s: %w", destPath, err)
		}

		sum := sha256HexOf(data)
		if sum != e.SHA256 {
			report.MismatchFiles = append(report.MismatchFiles, e.RelativePath)
			continue
		}
		report.MatchedFiles++
	}

	if len(report.MismatchFiles) > 0 {
		return report, fmt.Errorf("%w: %d of %d files", ErrManifestMismatch, len(report.MismatchFiles), report.TotalFiles)
	}
	return report, nil
}

func withinDir(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func readManifest(r *zip.Reader) (Manifest, error) {
	for _, f := range r.File {
		if f.Name != "manifest.json" {
			continue
		}
		data, err := readZipEntry(f)
		if err != nil {
			return Manifest{}, fmt.Errorf("archive: reading manifest.json: %w", err)
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return Manifest{}, fmt.Errorf("archive: decoding manifest.json: %w", err)
		}
		return m, nil
	}
	return Manifest{}, fmt.Errorf("archive: package has no manifest.json")
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func hashZipEntry(f *zip.File) (string, error) {
	data, err := readZipEntry(f)
	if err != nil {
		return "", err
	}
	return sha256HexOf(data), nil
}

func sha256HexOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
