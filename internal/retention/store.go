// Package retention keeps the newest N capture files and deletes the rest.
package retention

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/xkilldash9x/patrol-cli/api/schemas"
	"github.com/xkilldash9x/patrol-cli/internal/observability"
	"go.uber.org/zap"
)

// FilePrefix and FileExt frame every capture file name.
const (
	FilePrefix = "capture-"
	FileExt    = ".png"
)

var (
	unsafeLabelChars = regexp.MustCompile(`[^A-Za-z0-9]`)
	capturePattern   = regexp.MustCompile(`^capture-.*\.png$`)
)

const maxLabelLen = 20

// SanitizeLabel replaces anything outside [A-Za-z0-9] with '_' and cuts the result to 20 characters.
func SanitizeLabel(label string) string {
	s := unsafeLabelChars.ReplaceAllString(label, "_")
	if len(s) > maxLabelLen {
		s = s[:maxLabelLen]
	}
	return s
}

// FileName builds capture-{label}-{suffix}-{timestamp}.png. The timestamp is
// ISO-8601 UTC with ':' replaced by '-' so it is safe on every filesystem.
func FileName(label, suffix string, at time.Time) string {
	ts := strings.ReplaceAll(at.UTC().Format("2006-01-02T15:04:05.000Z"), ":", "-")
	return fmt.Sprintf("%s%s-%s-%s%s", FilePrefix, SanitizeLabel(label), suffix, ts, FileExt)
}

type entry struct {
	ref schemas.ArtifactRef
	seq uint64
}

// Store is the bounded artifact index. All methods are safe for concurrent use.
type Store struct {
	logger   *zap.Logger
	dir      string
	capacity int

	mu      sync.Mutex
	entries []entry
	seq     uint64
}

// Open creates dir if needed and indexes capture files already in it. The
// bound is applied immediately.
func Open(logger *zap.Logger, dir string, capacity int) (*Store, error) {
	s, err := Inspect(logger, dir, capacity)
	if err != nil {
		return nil, err
	}
	if _, err := s.Prune(); err != nil {
		return nil, err
	}
	return s, nil
}

// Inspect is Open without the initial Prune. The index stays empty until
// Prune is called.
func Inspect(logger *zap.Logger, dir string, capacity int) (*Store, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("retention capacity must be at least 1, got %d", capacity)
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand artifact dir: %w", err)
	}
	if err := os.MkdirAll(expanded, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir: %w", err)
	}

	return &Store{
		logger:   logger.Named("retention"),
		dir:      expanded,
		capacity: capacity,
	}, nil
}

// Dir is the directory captures are written to.
func (s *Store) Dir() string { return s.dir }

// Capacity is the maximum number of retained artifacts.
func (s *Store) Capacity() int { return s.capacity }

// Save writes data under name and returns a reference to it. The file is
// written to a temporary name first so a partial capture is never indexed.
func (s *Store) Save(name string, data []byte, createdAt time.Time) (schemas.ArtifactRef, error) {
	if filepath.Base(name) != name || !capturePattern.MatchString(name) {
		return schemas.ArtifactRef{}, fmt.Errorf("invalid capture file name %q", name)
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return schemas.ArtifactRef{}, fmt.Errorf("failed to write capture: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return schemas.ArtifactRef{}, fmt.Errorf("failed to finalize capture: %w", err)
	}
	return schemas.ArtifactRef{FileName: name, Path: path, CreatedAt: createdAt}, nil
}

// Admit adds ref and evicts everything beyond the newest capacity entries.
// It returns the evicted references. Deletion failures are logged only.
func (s *Store) Admit(ref schemas.ArtifactRef) []schemas.ArtifactRef {
	s.mu.Lock()
	s.seq++
	s.entries = append(s.entries, entry{ref: ref, seq: s.seq})
	evicted := s.evictLocked()
	s.mu.Unlock()

	s.remove(evicted)
	return evicted
}

// List returns the retained references, newest first.
func (s *Store) List() []schemas.ArtifactRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schemas.ArtifactRef, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.ref
	}
	return out
}

// Len is the number of retained references.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Prune rebuilds the index from the directory, using file modification times,
// and applies the bound. It returns how many files were deleted.
func (s *Store) Prune() (int, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list artifact dir: %w", err)
	}

	var found []entry
	for _, de := range dirEntries {
		if de.IsDir() || !capturePattern.MatchString(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Removed between listing and stat.
			continue
		}
		found = append(found, entry{ref: schemas.ArtifactRef{
			FileName:  de.Name(),
			Path:      filepath.Join(s.dir, de.Name()),
			CreatedAt: info.ModTime(),
		}})
	}

	s.mu.Lock()
	// Order by name for stable sequence numbers when mtimes tie.
	sort.Slice(found, func(i, j int) bool { return found[i].ref.FileName < found[j].ref.FileName })
	for i := range found {
		s.seq++
		found[i].seq = s.seq
	}
	s.entries = found
	evicted := s.evictLocked()
	s.mu.Unlock()

	s.remove(evicted)
	return len(evicted), nil
}

// evictLocked sorts newest first and cuts the tail. Caller holds s.mu.
func (s *Store) evictLocked() []schemas.ArtifactRef {
	sort.SliceStable(s.entries, func(i, j int) bool {
		a, b := s.entries[i], s.entries[j]
		if !a.ref.CreatedAt.Equal(b.ref.CreatedAt) {
			return a.ref.CreatedAt.After(b.ref.CreatedAt)
		}
		return a.seq > b.seq
	})
	if len(s.entries) <= s.capacity {
		return nil
	}
	tail := s.entries[s.capacity:]
	evicted := make([]schemas.ArtifactRef, len(tail))
	for i, e := range tail {
		evicted[i] = e.ref
	}
	s.entries = append([]entry(nil), s.entries[:s.capacity]...)
	return evicted
}

func (s *Store) remove(refs []schemas.ArtifactRef) {
	for _, ref := range refs {
		err := os.Remove(ref.Path)
		switch {
		case err == nil:
			s.logger.Debug("Evicted artifact.", zap.String("file", ref.FileName))
		case errors.Is(err, fs.ErrNotExist):
			s.logger.Debug("Artifact already gone.", zap.String("file", ref.FileName))
		default:
			s.logger.Warn("Failed to delete artifact.",
				zap.String("reason", "RetentionIOError"),
				zap.String("file", ref.FileName),
				zap.Error(err))
		}
	}
	observability.RecordEvictions(len(refs))
}
