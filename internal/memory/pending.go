package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StalePendingAge is how old an abandoned pending or temp file must be
// before the sweep removes it.
const StalePendingAge = time.Hour

const (
	pendingPrefix = "pending-"
	pendingSuffix = ".json"
)

// PendingExtraction is a transcript handed to the out-of-process
// extraction worker.
type PendingExtraction struct {
	ID         string    `json:"id"`
	Transcript string    `json:"serializedTranscript"`
	Provider   string    `json:"providerName"`
	Model      string    `json:"modelName"`
	CreatedAt  time.Time `json:"createdAt"`
}

// WritePending atomically writes p into dir as pending-<id>.json and
// returns the file path. Missing ID and CreatedAt are filled in.
func WritePending(dir string, p PendingExtraction) (string, error) {
	if strings.TrimSpace(p.Transcript) == "" {
		return "", errors.New("memory: pending extraction has an empty transcript")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("memory: marshal pending extraction: %w", err)
	}

	path := filepath.Join(dir, pendingPrefix+p.ID+pendingSuffix)
	if err := writeFileAtomic(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// ReadPending loads one pending file. Undecodable content yields
// ErrCorruptPending.
func ReadPending(path string) (PendingExtraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PendingExtraction{}, fmt.Errorf("memory: read pending %s: %w", path, err)
	}
	var p PendingExtraction
	if err := json.Unmarshal(data, &p); err != nil {
		return PendingExtraction{}, fmt.Errorf("%w: %s: %w", ErrCorruptPending, path, err)
	}
	if strings.TrimSpace(p.Transcript) == "" {
		return PendingExtraction{}, fmt.Errorf("%w: %s: empty transcript", ErrCorruptPending, path)
	}
	return p, nil
}

// ListPending returns the pending files in dir, oldest first by
// modification time. A missing directory yields none.
func ListPending(dir string) ([]string, error) {
	infos, err := scanDir(dir, isPendingName)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].modTime.Before(infos[j].modTime)
	})

	paths := make([]string, len(infos))
	for i, info := range infos {
		paths[i] = info.path
	}
	return paths, nil
}

// SweepStale removes pending files and abandoned temp files in dir whose
// modification time is older than maxAge relative to now. It returns the
// number of files removed.
func SweepStale(dir string, maxAge time.Duration, now time.Time) (int, error) {
	infos, err := scanDir(dir, func(name string) bool {
		return isPendingName(name) || isAtomicTempName(name)
	})
	if err != nil {
		return 0, err
	}

	var errs []error
	removed := 0
	for _, info := range infos {
		if now.Sub(info.modTime) <= maxAge {
			continue
		}
		if err := os.Remove(info.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func isPendingName(name string) bool {
	return strings.HasPrefix(name, pendingPrefix) && strings.HasSuffix(name, pendingSuffix)
}

// isAtomicTempName reports whether name is a leftover of writeFileAtomic
// for one of the files this package owns: ".<base>.<digits>.tmp".
func isAtomicTempName(name string) bool {
	if !strings.HasPrefix(name, ".") || !strings.HasSuffix(name, tempSuffix) {
		return false
	}
	rest := strings.TrimSuffix(name[1:], tempSuffix)
	i := strings.LastIndexByte(rest, '.')
	if i <= 0 || i == len(rest)-1 {
		return false
	}
	base, random := rest[:i], rest[i+1:]
	for _, r := range random {
		if r < '0' || r > '9' {
			return false
		}
	}
	return base == StoreFileName || base == StoreFileName+metaSuffix || isPendingName(base)
}

type fileInfo struct {
	path    string
	modTime time.Time
}

func scanDir(dir string, match func(name string) bool) ([]fileInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: read dir %s: %w", dir, err)
	}

	var out []fileInfo
	for _, e := range entries {
		if e.IsDir() || !match(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed concurrently.
			continue
		}
		out = append(out, fileInfo{path: filepath.Join(dir, e.Name()), modTime: info.ModTime()})
	}
	return out, nil
}
