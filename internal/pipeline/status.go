package pipeline

import (
	"path/filepath"

	"github.com/TobiSchelling/surveyscore/internal/config"
	"github.com/TobiSchelling/surveyscore/internal/snapshot"
)

// CategoryStatus counts the filed exports of one category.
type CategoryStatus struct {
	Category snapshot.Category
	Exports  int
}

// Status describes the data folder: exports waiting in intake and exports
// already filed per category.
type Status struct {
	DataDir    string
	Pending    int
	Categories []CategoryStatus
}

// Inspect reports the state of the data folder without changing it.
func Inspect(cfg *config.Config) (*Status, error) {
	dir := cfg.Resolve(cfg.Paths.DataDir)
	pending, err := snapshot.Count(dir)
	if err != nil {
		return nil, err
	}
	s := &Status{DataDir: dir, Pending: pending}
	for _, c := range snapshot.Categories {
		n, err := snapshot.Count(filepath.Join(dir, c.Dir()))
		if err != nil {
			return nil, err
		}
		s.Categories = append(s.Categories, CategoryStatus{Category: c, Exports: n})
	}
	return s, nil
}
