package snapshot

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/TobiSchelling/surveyscore/internal/workbook"
)

// Working reads the latest and previous exports and returns the rows to score
// this run. When both paths are the same file, every row is returned.
func Working(latestPath, previousPath string, headerOffset int, policy DuplicatePolicy, logger *zap.Logger) (*workbook.Table, DiffStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	latest, err := workbook.Read(latestPath, "", headerOffset)
	if err != nil {
		return nil, DiffStats{}, fmt.Errorf("reading latest export: %w", err)
	}
	if latestPath == previousPath {
		stats := DiffStats{Latest: latest.Len(), Kept: latest.Len()}
		logger.Info("single export in category, scoring every row", zap.Int("rows", latest.Len()))
		return latest, stats, nil
	}

	previous, err := workbook.Read(previousPath, "", headerOffset)
	if err != nil {
		return nil, DiffStats{}, fmt.Errorf("reading previous export: %w", err)
	}

	working, stats := Diff(previous, latest, policy)
	if stats.WithinFileDuplicates > 0 {
		logger.Warn("exports contain repeated rows",
			zap.Int("extra_copies", stats.WithinFileDuplicates),
			zap.String("policy", string(policy)))
	}
	logger.Info("snapshot diff",
		zap.Int("previous_rows", stats.Previous),
		zap.Int("latest_rows", stats.Latest),
		zap.Int("shared_rows", stats.Shared),
		zap.Int("new_rows", stats.Kept))
	return working, stats, nil
}
