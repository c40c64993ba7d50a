package store

import (
	"context"
	"sort"
)

// DBStats holds aggregated statistics for the entire database, including a
// list of all models and their individual stats.
type DBStats struct {
	Models    []ModelInfo        // All models, sorted by name
	Stats     map[int]ModelStats // A mapping of model ids to their stats
	VocabSize int                // The number of unique words shared by all models
}

// ModelStats holds aggregated statistics for a single stored model.
type ModelStats struct {
	Transitions    int // The number of unique (word, tag) -> (word, tag) links.
	TotalFrequency int // The sum of frequencies of all links; the number of trained pairs.
	Words          int // The number of distinct words with an outgoing link.
	Tags           int // The number of distinct non-empty tags with an outgoing link.
}

// GetModelStats returns the statistics of a single model.
func (s *Store) GetModelStats(ctx context.Context, model ModelInfo) (ModelStats, error) {
	var stats ModelStats
	if err := s.stmtModelLinks.QueryRowContext(ctx, model.Id).Scan(&stats.Transitions); err != nil {
		return ModelStats{}, err
	}
	if err := s.stmtModelFreq.QueryRowContext(ctx, model.Id).Scan(&stats.TotalFrequency); err != nil {
		return ModelStats{}, err
	}
	if err := s.stmtModelWords.QueryRowContext(ctx, model.Id).Scan(&stats.Words); err != nil {
		return ModelStats{}, err
	}
	if err := s.stmtModelTags.QueryRowContext(ctx, model.Id).Scan(&stats.Tags); err != nil {
		return ModelStats{}, err
	}
	return stats, nil
}

// GetStats returns a snapshot of statistics for the entire database,
// including global counts and per-model stats.
func (s *Store) GetStats(ctx context.Context) (*DBStats, error) {
	modelInfos, err := s.GetModelInfos(ctx)
	if err != nil {
		return nil, err
	}

	var vocabLen int
	if err = s.stmtGetVocabLen.QueryRowContext(ctx).Scan(&vocabLen); err != nil {
		return nil, err
	}

	models := make([]ModelInfo, 0, len(modelInfos))
	modelStats := make(map[int]ModelStats, len(modelInfos))
	for _, v := range modelInfos {
		models = append(models, v)
		stats, err := s.GetModelStats(ctx, v)
		if err != nil {
			return nil, err
		}
		modelStats[v.Id] = stats
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })

	return &DBStats{
		Models:    models,
		Stats:     modelStats,
		VocabSize: vocabLen,
	}, nil
}
