package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cleared-dev/reconciler/internal/model"
)

// ProcessedDir is the inbox subdirectory imported files are moved to.
const ProcessedDir = "processed"

// FileInfo describes a CSV file waiting in an inbox directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// SourceDir returns the inbox subdirectory for source, e.g. <inbox>/bank.
func SourceDir(inbox string, source model.Source) string {
	return filepath.Join(inbox, strings.ToLower(string(source)))
}

// Scan returns CSV files in dir sorted by name. A missing dir yields no files.
func Scan(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading inbox dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// MarkProcessed moves dir/fileName to dir/processed/fileName.
func MarkProcessed(dir, fileName string) error {
	dstDir := filepath.Join(dir, ProcessedDir)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	src := filepath.Join(dir, fileName)
	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
