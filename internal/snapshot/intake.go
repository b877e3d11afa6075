// Package snapshot selects raw survey exports and isolates the respondent
// rows that are new since the previously processed export.
package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/surveyscore/internal/survey"
)

const exportExt = ".xlsx"

// Intake manages the folder raw exports are dropped into.
type Intake struct {
	dir    string
	logger *zap.Logger
}

// NewIntake creates an intake rooted at dir.
func NewIntake(dir string, logger *zap.Logger) *Intake {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Intake{dir: dir, logger: logger}
}

// Dir returns the intake folder.
func (in *Intake) Dir() string { return in.dir }

// CategoryDir returns the folder exports of a category are filed under.
func (in *Intake) CategoryDir(c Category) string {
	return filepath.Join(in.dir, c.Dir())
}

// Latest returns the most recently modified export in the intake folder.
func (in *Intake) Latest() (string, error) {
	files, err := listExports(in.dir)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", &survey.MissingFileError{Path: filepath.Join(in.dir, "*"+exportExt)}
	}
	return files[len(files)-1].path, nil
}

// Relocate moves an export into its category folder, creating the folder if
// needed, and returns the new path.
func (in *Intake) Relocate(path string, c Category) (string, error) {
	target := in.CategoryDir(c)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("creating category directory: %w", err)
	}
	dest := filepath.Join(target, filepath.Base(path))
	if filepath.Clean(path) == dest {
		return dest, nil
	}
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("moving %s to %s: %w", path, dest, err)
	}
	in.logger.Info("export filed", zap.String("file", filepath.Base(path)), zap.String("category", c.Dir()))
	return dest, nil
}

// Snapshots returns the newest and second-newest export in dir. When only
// one export exists, previous equals latest.
func Snapshots(dir string) (latest, previous string, err error) {
	files, err := listExports(dir)
	if err != nil {
		return "", "", err
	}
	switch len(files) {
	case 0:
		return "", "", &survey.MissingFileError{Path: filepath.Join(dir, "*"+exportExt)}
	case 1:
		return files[0].path, files[0].path, nil
	default:
		return files[len(files)-1].path, files[len(files)-2].path, nil
	}
}

// Count returns how many exports dir holds. A missing dir holds none.
func Count(dir string) (int, error) {
	files, err := listExports(dir)
	if errors.Is(err, survey.ErrMissingFile) {
		return 0, nil
	}
	return len(files), err
}

type export struct {
	path    string
	modTime time.Time
}

// listExports returns the exports directly inside dir, oldest first.
func listExports(dir string) ([]export, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &survey.MissingFileError{Path: dir}
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var files []export
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), exportExt) || strings.HasPrefix(name, "~$") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		files = append(files, export{path: filepath.Join(dir, name), modTime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].path < files[j].path
		}
		return files[i].modTime.Before(files[j].modTime)
	})
	return files, nil
}
