package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cotpulse/internal/dataprocessing"
	"cotpulse/pkg/contracts/domain"
)

// FileInfo represents information about a discovered import file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
	Dataset domain.DatasetKind
}

// ClassifyImport decides which dataset a dropped file replaces from its
// name: positions* or history*, case-insensitive, with a supported
// extension. Hidden files never match.
func ClassifyImport(name string) (domain.DatasetKind, bool) {
	base := strings.ToLower(filepath.Base(name))
	if strings.HasPrefix(base, ".") || !hasSupportedExtension(base) {
		return "", false
	}
	for _, kind := range domain.DatasetKinds {
		if strings.HasPrefix(base, string(kind)) {
			return kind, true
		}
	}
	return "", false
}

func hasSupportedExtension(name string) bool {
	ext := filepath.Ext(name)
	for _, supported := range dataprocessing.SupportedExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// FindImports lists the importable files in dir, oldest first, so replaying
// them leaves the newest file of each dataset in place.
func FindImports(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var found []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		kind, ok := ClassifyImport(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, FileInfo{
			Path:    filepath.Join(dir, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Dataset: kind,
		})
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].ModTime.Before(found[j].ModTime)
	})
	return found, nil
}
