package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// PruneModel removes all transitions of a specific model that have a frequency
// less than or equal to `minFreq` and returns how many were removed. This is
// useful for reducing the size of a model by removing rare, and often noisy,
// transitions.
func (s *Store) PruneModel(ctx context.Context, model ModelInfo, minFreq int) (int64, error) {
	res, err := s.stmtPruneModel.ExecContext(ctx, model.Id, minFreq)
	if err != nil {
		return 0, fmt.Errorf("could not prune model %d: %w", model.Id, err)
	}
	rowsAffected, _ := res.RowsAffected()

	s.logger.InfoContext(ctx, "Model pruned",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int("min_frequency", minFreq),
		slog.Int64("transitions_removed", rowsAffected),
	)
	return rowsAffected, nil
}

// VocabularyPrune performs a database-wide cleanup, removing words from the
// shared vocabulary that no transition of any model refers to anymore. Such
// orphans are left behind by PruneModel and RemoveModel.
func (s *Store) VocabularyPrune(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not begin transaction for pruning: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	res, err := tx.ExecContext(ctx, `
DELETE FROM textgen_vocabulary
WHERE token_id NOT IN (SELECT cur_token_id FROM textgen_transitions)
  AND token_id NOT IN (SELECT next_token_id FROM textgen_transitions);`)
	if err != nil {
		return 0, fmt.Errorf("failed to prune vocabulary: %w", err)
	}
	removed, _ := res.RowsAffected()

	s.logger.InfoContext(ctx, "Vocabulary pruned successfully",
		slog.Int64("tokens_removed", removed),
	)

	return removed, tx.Commit()
}
