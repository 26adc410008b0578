package store

import (
	"context"
	"fmt"
	"log/slog"
)

// SweepOrphans deletes media owned by packs that no longer exist. Such
// files are left behind when the process dies between storing media and
// saving the pack. Run it before imports start: media of an import still
// in flight looks orphaned too. It returns the number of files removed.
func SweepOrphans(ctx context.Context, packs *PackStore, files *FileStore, logger *slog.Logger) (int64, error) {
	owners, err := files.PackIDs(ctx)
	if err != nil {
		return 0, err
	}
	ids, err := packs.IDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing packs: %w", err)
	}

	live := make(map[string]bool, len(ids))
	for _, id := range ids {
		live[id] = true
	}

	var removed int64
	for _, owner := range owners {
		if live[owner] {
			continue
		}
		n, err := files.DeletePack(ctx, owner)
		if err != nil {
			return removed, err
		}
		logger.Info("removed orphaned media", "pack", owner, "files", n)
		removed += n
	}
	return removed, nil
}
