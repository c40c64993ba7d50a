package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/seboll13/TextGenerator/pkg/markov"
)

// ModelInfo holds the metadata of a stored model: its unique ID, name, and the
// mode its counts are built into.
type ModelInfo struct {
	Id   int
	Name string
	Mode markov.Mode
}

// ExportedModel is the serializable representation of a trained model,
// used for JSON-based import and export. Words are written as text so an
// export does not depend on the vocabulary IDs of the source database.
type ExportedModel struct {
	Name        string               `json:"name"`
	Mode        string               `json:"mode"`
	Transitions []ExportedTransition `json:"transitions"`
}

// ExportedTransition is a single counted (word, tag) -> (word, tag) link
// within an ExportedModel.
type ExportedTransition struct {
	From      string `json:"from"`
	FromTag   string `json:"from_tag,omitempty"`
	To        string `json:"to"`
	ToTag     string `json:"to_tag,omitempty"`
	Frequency int    `json:"frequency"`
}

// GetModelInfos retrieves metadata for all models currently in the database,
// returning them in a map keyed by model name.
func (s *Store) GetModelInfos(ctx context.Context) (map[string]ModelInfo, error) {
	rows, err := s.stmtGetModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	models := make(map[string]ModelInfo)
	for rows.Next() {
		var model ModelInfo
		var mode string
		if err = rows.Scan(&model.Id, &model.Name, &mode); err != nil {
			return nil, err
		}
		model.Mode, _ = markov.ParseMode(mode)
		models[model.Name] = model
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}

// GetModelInfo retrieves the metadata for a single model specified by name.
// It returns ErrModelNotFound if no such model exists.
func (s *Store) GetModelInfo(ctx context.Context, modelName string) (ModelInfo, error) {
	var modelId int
	var mode string
	err := s.stmtGetModelInfo.QueryRowContext(ctx, modelName).Scan(&modelId, &mode)
	if errors.Is(err, sql.ErrNoRows) {
		return ModelInfo{}, fmt.Errorf("%w: %q", ErrModelNotFound, modelName)
	}
	if err != nil {
		return ModelInfo{}, err
	}
	parsed, ok := markov.ParseMode(mode)
	if !ok {
		return ModelInfo{}, fmt.Errorf("model %q has unknown mode %q", modelName, mode)
	}
	return ModelInfo{
		Id:   modelId,
		Name: modelName,
		Mode: parsed,
	}, nil
}

// InsertModel creates a new model entry in the database.
func (s *Store) InsertModel(ctx context.Context, model ModelInfo) error {
	if model.Name == "" {
		return errors.New("model name must not be empty")
	}
	_, err := s.stmtAddModel.ExecContext(ctx, model.Name, model.Mode.String())
	return err
}

// EnsureModel returns the model called name, creating it with mode first if it
// does not exist yet.
func (s *Store) EnsureModel(ctx context.Context, name string, mode markov.Mode) (ModelInfo, error) {
	info, err := s.GetModelInfo(ctx, name)
	if err == nil {
		return info, nil
	}
	if !errors.Is(err, ErrModelNotFound) {
		return ModelInfo{}, err
	}
	if err = s.InsertModel(ctx, ModelInfo{Name: name, Mode: mode}); err != nil {
		return ModelInfo{}, fmt.Errorf("failed to create model %q: %w", name, err)
	}
	s.logger.InfoContext(ctx, "Model created",
		slog.String("model_name", name),
		slog.String("mode", mode.String()),
	)
	return s.GetModelInfo(ctx, name)
}

// RemoveModel deletes a model and all of its transitions from the database.
// The operation is performed within a transaction.
func (s *Store) RemoveModel(ctx context.Context, model ModelInfo) error {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.ExecContext(ctx, "DELETE FROM textgen_transitions WHERE model_id = ?", model.Id); err != nil {
		return fmt.Errorf("failed to remove transitions for model %d: %w", model.Id, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM textgen_models WHERE model_id = ?", model.Id); err != nil {
		return fmt.Errorf("failed to remove model %d: %w", model.Id, err)
	}

	s.logger.InfoContext(ctx, "Model removed successfully",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
	)

	return tx.Commit()
}

// RemoveModelIfEmpty deletes a model only while it has no transitions, and
// reports whether it was removed. Callers use it to undo a model they created
// for a training run that failed.
func (s *Store) RemoveModelIfEmpty(ctx context.Context, model ModelInfo) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM textgen_models
WHERE model_id = ? AND NOT EXISTS (SELECT 1 FROM textgen_transitions WHERE model_id = ?);`, model.Id, model.Id)
	if err != nil {
		return false, fmt.Errorf("failed to remove empty model %d: %w", model.Id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Empty model removed",
			slog.String("model_name", model.Name),
			slog.Int("model_id", model.Id),
		)
	}
	return n > 0, nil
}

// LoadCounts reads every stored transition of a model back into count tables.
func (s *Store) LoadCounts(ctx context.Context, model ModelInfo) (*markov.Counts, error) {
	rows, err := s.stmtLoadModel.QueryContext(ctx, model.Id)
	if err != nil {
		return nil, fmt.Errorf("could not query transitions for model %d: %w", model.Id, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	counts := markov.NewCounts()
	for rows.Next() {
		var from, to markov.Token
		var freq int
		if err = rows.Scan(&from.Text, &from.Tag, &to.Text, &to.Tag, &freq); err != nil {
			return nil, err
		}
		counts.Add(from, to, freq)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// LoadModel loads the counts of a model and builds them into a markov.Model of
// the model's mode. A model with no transitions yields markov.ErrEmptyInput.
func (s *Store) LoadModel(ctx context.Context, model ModelInfo, opts ...markov.BuildOption) (*markov.Model, error) {
	counts, err := s.LoadCounts(ctx, model)
	if err != nil {
		return nil, err
	}

	opts = append([]markov.BuildOption{markov.WithLogger(s.logger)}, opts...)
	m, err := markov.FromCounts(counts, model.Mode, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not build model %q: %w", model.Name, err)
	}

	s.logger.DebugContext(ctx, "Model loaded",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int("transitions", counts.Transitions()),
	)
	return m, nil
}

// ExportModel serializes a given model into a JSON format and writes it to the
// provided io.Writer. This is useful for backups or for transferring models.
func (s *Store) ExportModel(ctx context.Context, model ModelInfo, w io.Writer) error {
	counts, err := s.LoadCounts(ctx, model)
	if err != nil {
		return fmt.Errorf("could not load model for export: %w", err)
	}

	links := counts.Links()
	exported := ExportedModel{
		Name:        model.Name,
		Mode:        model.Mode.String(),
		Transitions: make([]ExportedTransition, 0, len(links)),
	}
	for _, link := range links {
		exported.Transitions = append(exported.Transitions, ExportedTransition{
			From:      link.From.Text,
			FromTag:   link.From.Tag,
			To:        link.To.Text,
			ToTag:     link.To.Tag,
			Frequency: link.Count,
		})
	}

	s.logger.InfoContext(ctx, "Model exported",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int("transitions_exported", len(exported.Transitions)),
	)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exported)
}

// ImportModel reads a JSON representation of a model from an io.Reader and
// merges its data into the database. If the model name already exists, the
// imported frequencies are added to the existing ones and the stored mode is
// kept. If the model does not exist, it is created. The entire operation is
// transactional. The imported model's metadata is returned.
func (s *Store) ImportModel(ctx context.Context, r io.Reader) (ModelInfo, error) {
	var imported ExportedModel
	if err := json.NewDecoder(r).Decode(&imported); err != nil {
		return ModelInfo{}, fmt.Errorf("failed to decode json model: %w", err)
	}
	if imported.Name == "" {
		return ModelInfo{}, errors.New("imported model has no name")
	}
	mode, ok := markov.ParseMode(imported.Mode)
	if !ok {
		return ModelInfo{}, fmt.Errorf("imported model %q has unknown mode %q", imported.Name, imported.Mode)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("could not begin transaction for import: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	info := ModelInfo{Name: imported.Name, Mode: mode}
	var storedMode string
	err = tx.QueryRowContext(ctx, "SELECT model_id, model_mode FROM textgen_models WHERE model_name = ?", imported.Name).Scan(&info.Id, &storedMode)
	if errors.Is(err, sql.ErrNoRows) {
		res, err := tx.ExecContext(ctx, "INSERT INTO textgen_models (model_name, model_mode) VALUES (?, ?)", imported.Name, mode.String())
		if err != nil {
			return ModelInfo{}, fmt.Errorf("failed to insert new model '%s': %w", imported.Name, err)
		}
		newID, _ := res.LastInsertId()
		info.Id = int(newID)
	} else if err != nil {
		return ModelInfo{}, fmt.Errorf("failed to query for model '%s': %w", imported.Name, err)
	} else {
		info.Mode, _ = markov.ParseMode(storedMode)
		if info.Mode != mode {
			s.logger.WarnContext(ctx, "Imported mode differs from stored model, keeping stored mode",
				slog.String("model_name", imported.Name),
				slog.String("stored_mode", storedMode),
				slog.String("imported_mode", imported.Mode),
			)
		}
	}

	w := newLinkWriter(ctx, tx, s, info)
	for _, t := range imported.Transitions {
		if t.Frequency <= 0 {
			return ModelInfo{}, fmt.Errorf("import consistency error: transition %q -> %q has frequency %d", t.From, t.To, t.Frequency)
		}
		from := markov.Token{Text: markov.Normalize(t.From), Tag: t.FromTag}
		to := markov.Token{Text: markov.Normalize(t.To), Tag: t.ToTag}
		if err := w.write(from, to, t.Frequency); err != nil {
			return ModelInfo{}, err
		}
	}

	s.logger.InfoContext(ctx, "Model imported successfully",
		slog.String("model_name", imported.Name),
		slog.Int("target_model_id", info.Id),
		slog.Int("transitions_merged", len(imported.Transitions)),
	)

	return info, tx.Commit()
}
