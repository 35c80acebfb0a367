// Package repository implements the Parser Repository (spec §4.6, §6):
// a content-addressed, versioned, durable filesystem store of per-label
// knowledge entries. Writes are temp-file-then-atomic-rename so a crash
// either fully publishes or fully discards an entry.
package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/extractionengine/internal/interfaces"
	"github.com/ternarybob/extractionengine/internal/model"
)

// FilesystemRepository is the default interfaces.Repository backing
// store: one directory per label under Root, each holding
// parser.v{N}.json, validation.v{N}.json, meta.v{N}.json, and a
// "current" file naming the live version.
type FilesystemRepository struct {
	root   string
	logger arbor.ILogger

	labelMu sync.Map // label -> *sync.Mutex, serializes Put per label
}

var _ interfaces.Repository = (*FilesystemRepository)(nil)

// New returns a FilesystemRepository rooted at root, creating it if it
// does not already exist.
func New(root string, logger arbor.ILogger) (*FilesystemRepository, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create repository root %s: %w", root, err)
	}
	return &FilesystemRepository{root: root, logger: logger}, nil
}

var unsafeLabelChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// encodeLabel produces a filesystem-safe, collision-resistant directory
// name for a label: a sanitized prefix for readability plus a content
// hash suffix so two labels that sanitize identically never collide.
func encodeLabel(label string) string {
	sanitized := unsafeLabelChars.ReplaceAllString(label, "_")
	if len(sanitized) > 64 {
		sanitized = sanitized[:64]
	}
	sum := sha256.Sum256([]byte(label))
	return fmt.Sprintf("%s-%s", sanitized, hex.EncodeToString(sum[:8]))
}

func (r *FilesystemRepository) labelDir(label string) string {
	return filepath.Join(r.root, encodeLabel(label))
}

func (r *FilesystemRepository) labelLock(label string) *sync.Mutex {
	mu, _ := r.labelMu.LoadOrStore(label, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// metaFile is the structural payload of meta.v{N}.json.
type metaFile struct {
	Label          string    `json:"label"`
	Version        int       `json:"version"`
	GabaritoDigest string    `json:"gabarito_digest"`
	CreatedAt      time.Time `json:"created_at"`
}

// Get implements interfaces.Repository. A structurally invalid entry
// (spec §7 RepositoryCorruption) is quarantined — renamed, not deleted —
// and reported as a miss.
func (r *FilesystemRepository) Get(ctx context.Context, label string) (*model.KnowledgeEntry, bool, error) {
	dir := r.labelDir(label)

	version, err := r.readCurrent(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, nil // unreadable current pointer: treat as miss
	}

	entry, err := r.readVersion(dir, label, version)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn().Err(err).Str("label", label).Int("version", version).Msg("repository entry failed structural check, quarantining")
		}
		r.quarantine(dir, version)
		return nil, false, nil
	}

	return entry, true, nil
}

func (r *FilesystemRepository) readCurrent(dir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(dir, "current"))
	if err != nil {
		return 0, err
	}
	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed current pointer: %w", err)
	}
	return version, nil
}

func (r *FilesystemRepository) readVersion(dir, label string, version int) (*model.KnowledgeEntry, error) {
	var meta metaFile
	if err := readJSON(filepath.Join(dir, fmt.Sprintf("meta.v%d.json", version)), &meta); err != nil {
		return nil, fmt.Errorf("meta: %w", err)
	}

	var parserPack model.ParserPack
	if err := readJSON(filepath.Join(dir, fmt.Sprintf("parser.v%d.json", version)), &parserPack); err != nil {
		return nil, fmt.Errorf("parser pack: %w", err)
	}

	var validationPack model.ValidationPack
	if err := readJSON(filepath.Join(dir, fmt.Sprintf("validation.v%d.json", version)), &validationPack); err != nil {
		return nil, fmt.Errorf("validation pack: %w", err)
	}

	if meta.Label != label || meta.Version != version {
		return nil, fmt.Errorf("meta mismatch: expected label=%s version=%d, got label=%s version=%d", label, version, meta.Label, meta.Version)
	}

	return &model.KnowledgeEntry{
		Label:          label,
		Version:        version,
		ParserPack:     parserPack,
		ValidationPack: validationPack,
		GabaritoDigest: meta.GabaritoDigest,
		CreatedAt:      meta.CreatedAt,
	}, nil
}

func readJSON(path string, target interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// quarantine renames the offending version's files aside rather than
// deleting them, per spec §7. Best-effort: failures are logged, not
// propagated, since Get must still report a clean miss either way.
func (r *FilesystemRepository) quarantine(dir string, version int) {
	suffix := fmt.Sprintf(".corrupt.%d", time.Now().UnixNano())
	for _, prefix := range []string{"meta", "parser", "validation"} {
		name := filepath.Join(dir, fmt.Sprintf("%s.v%d.json", prefix, version))
		if _, err := os.Stat(name); err == nil {
			os.Rename(name, name+suffix)
		}
	}
}

// PurgeQuarantine permanently deletes quarantined files older than
// retention (spec §7: quarantine is for inspection, not indefinite
// retention). Returns the count of files deleted.
func (r *FilesystemRepository) PurgeQuarantine(ctx context.Context, retention time.Duration) (int, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return 0, fmt.Errorf("failed to list repository root: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	deleted := 0

	for _, labelEntry := range entries {
		if !labelEntry.IsDir() {
			continue
		}
		dir := filepath.Join(r.root, labelEntry.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if !strings.Contains(f.Name(), ".corrupt.") {
				continue
			}
			info, err := f.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, f.Name())); err == nil {
				deleted++
			}
		}
	}

	return deleted, nil
}

// validateParserPack enforces spec §9's "patterns must be validated at put
// time, not only at emission": every pattern must compile, and must
// retain at least one capture group since the Parser Executor reads the
// extracted value from the first capture.
func validateParserPack(pack model.ParserPack) error {
	for _, entry := range pack {
		compiled, err := regexp.Compile(entry.Pattern)
		if err != nil {
			return fmt.Errorf("field %s: pattern does not compile: %w", entry.Field, err)
		}
		if compiled.NumSubexp() < 1 {
			return fmt.Errorf("field %s: pattern has no capture group", entry.Field)
		}
	}
	return nil
}

// Put implements interfaces.Repository: atomically publishes entry if
// entry.Version is strictly greater than the existing live version,
// otherwise is a no-op (spec §4.6, §8 invariant 3/8: strict monotonicity).
// Concurrent Puts for the same label are serialized. Rejects (without
// writing anything) a parser pack whose patterns are structurally
// unsound, rather than letting a corrupt entry publish and only fail
// lazily at execution time.
func (r *FilesystemRepository) Put(ctx context.Context, label string, entry *model.KnowledgeEntry) error {
	if err := validateParserPack(entry.ParserPack); err != nil {
		return fmt.Errorf("rejecting publish for label %s: %w", label, err)
	}

	lock := r.labelLock(label)
	lock.Lock()
	defer lock.Unlock()

	dir := r.labelDir(label)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create label dir: %w", err)
	}

	if existingVersion, err := r.readCurrent(dir); err == nil && existingVersion >= entry.Version {
		return nil // strictly-greater-version requirement not met: no-op
	}

	if err := writeJSONAtomic(filepath.Join(dir, fmt.Sprintf("parser.v%d.json", entry.Version)), entry.ParserPack); err != nil {
		return err
	}
	if err := writeJSONAtomic(filepath.Join(dir, fmt.Sprintf("validation.v%d.json", entry.Version)), entry.ValidationPack); err != nil {
		return err
	}
	meta := metaFile{
		Label:          label,
		Version:        entry.Version,
		GabaritoDigest: entry.GabaritoDigest,
		CreatedAt:      entry.CreatedAt,
	}
	if err := writeJSONAtomic(filepath.Join(dir, fmt.Sprintf("meta.v%d.json", entry.Version)), meta); err != nil {
		return err
	}

	// The "current" pointer is the publication point: only after every
	// per-version file exists does flipping it make the entry visible,
	// so a crash mid-write leaves the prior (or no) version live.
	if err := writeAtomic(filepath.Join(dir, "current"), []byte(strconv.Itoa(entry.Version))); err != nil {
		return err
	}

	return nil
}

// Clear implements interfaces.Repository by removing the current pointer;
// historical version files are left on disk for forensic purposes.
func (r *FilesystemRepository) Clear(ctx context.Context, label string) error {
	lock := r.labelLock(label)
	lock.Lock()
	defer lock.Unlock()

	return os.Remove(filepath.Join(r.labelDir(label), "current"))
}

func writeJSONAtomic(path string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	return writeAtomic(path, data)
}

// writeAtomic writes data to a temp file in the same directory as path,
// then renames it into place — rename is atomic on the same filesystem,
// so readers never observe a partially written file (spec §4.6, §6).
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file into place: %w", err)
	}

	return nil
}
