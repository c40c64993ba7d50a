package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"

	"github.com/seboll13/TextGenerator/pkg/markov"
	"github.com/seboll13/TextGenerator/pkg/store"
)

// maxParagraphSentences bounds a single paragraph request.
const maxParagraphSentences = 100

// GeneratorAPI holds the dependencies for the model and generation handlers.
type GeneratorAPI struct {
	store  *store.Store
	cache  *modelCache
	config *Config
	logger *slog.Logger
}

// VersionInfo defines the structure for build/version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

type CreateModelRequest struct {
	Name string `json:"name"`
	Mode string `json:"mode"`
}

type PruneRequest struct {
	MinFreq int `json:"min_freq"`
}

type ModelResponse struct {
	Name         string `json:"name"`
	Mode         string `json:"mode"`
	Transitions  int    `json:"transitions"`
	Observations int    `json:"observations"`
}

type SentenceResponse struct {
	Text  string   `json:"text"`
	Path  []string `json:"path"`
	State string   `json:"state"`
}

type ParagraphResponse struct {
	Text string `json:"text"`
}

type StatsResponse struct {
	Name         string `json:"name"`
	Mode         string `json:"mode"`
	States       int    `json:"states"`
	Nodes        int    `json:"nodes"`
	Transitions  int    `json:"transitions"`
	Observations int    `json:"observations"`
	DeadEnds     int    `json:"dead_ends"`
	Terminals    int    `json:"terminals"`
	Tags         int    `json:"tags"`
}

// NewGeneratorAPI creates a new instance of the GeneratorAPI.
func NewGeneratorAPI(s *store.Store, cache *modelCache, config *Config, logger *slog.Logger) *GeneratorAPI {
	return &GeneratorAPI{
		store:  s,
		cache:  cache,
		config: config,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all /api endpoints.
func (a *GeneratorAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", a.handleHealthCheck)
	mux.HandleFunc("GET /api/version", a.handleVersion)
	mux.HandleFunc("GET /api/models", a.handleListModels)
	mux.HandleFunc("POST /api/models", a.handleCreateModel)
	mux.HandleFunc("DELETE /api/models/{name}", a.handleDeleteModel)
	mux.HandleFunc("POST /api/models/{name}/train", a.handleTrain)
	mux.HandleFunc("POST /api/models/{name}/prune", a.handlePrune)
	mux.HandleFunc("GET /api/models/{name}/export", a.handleExport)
	mux.HandleFunc("GET /api/models/{name}/stats", a.handleStats)
	mux.HandleFunc("GET /api/models/{name}/graph", a.handleGraph)
	mux.HandleFunc("GET /api/models/{name}/sentence", a.handleSentence)
	mux.HandleFunc("GET /api/models/{name}/paragraph", a.handleParagraph)
	mux.HandleFunc("POST /api/import", a.handleImport)
	mux.HandleFunc("POST /api/vocabulary/prune", a.handleVocabPrune)
}

func (a *GeneratorAPI) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *GeneratorAPI) handleVersion(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, VersionInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	})
}

func (a *GeneratorAPI) handleListModels(w http.ResponseWriter, r *http.Request) {
	stats, err := a.store.GetStats(r.Context())
	if err != nil {
		a.logger.Error("Failed to get model infos", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve models: %v", err))
		return
	}
	models := make([]ModelResponse, 0, len(stats.Models))
	for _, info := range stats.Models {
		models = append(models, newModelResponse(info, stats.Stats[info.Id]))
	}
	respondWithJSON(w, http.StatusOK, models)
}

func (a *GeneratorAPI) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	var req CreateModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "Model name is required")
		return
	}
	mode, ok := a.parseMode(req.Mode)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Mode must be plain or tagged")
		return
	}

	if _, err := a.store.GetModelInfo(r.Context(), req.Name); err == nil {
		respondWithError(w, http.StatusConflict, "Model already exists")
		return
	}
	info, err := a.store.EnsureModel(r.Context(), req.Name, mode)
	if err != nil {
		a.logger.Error("Failed to insert new model", "name", req.Name, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to create model: %v", err))
		return
	}
	respondWithJSON(w, http.StatusCreated, newModelResponse(info, store.ModelStats{}))
}

func (a *GeneratorAPI) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	info, ok := a.modelInfo(w, r)
	if !ok {
		return
	}
	if err := a.store.RemoveModel(r.Context(), info); err != nil {
		a.logger.Error("Failed to remove model", "name", info.Name, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to remove model: %v", err))
		return
	}
	a.cache.invalidate(info.Name)
	w.WriteHeader(http.StatusNoContent)
}

// handleTrain trains a model from the raw request body, creating the model
// with the `mode` query parameter if it does not exist yet.
func (a *GeneratorAPI) handleTrain(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	mode, ok := a.parseMode(r.URL.Query().Get("mode"))
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Mode must be plain or tagged")
		return
	}

	_, err := a.store.GetModelInfo(r.Context(), name)
	created := errors.Is(err, store.ErrModelNotFound)
	info, err := a.store.EnsureModel(r.Context(), name, mode)
	if err != nil {
		a.logger.Error("Failed to get or create model", "name", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}

	body := http.MaxBytesReader(w, r.Body, a.config.Server.MaxBodyBytes)
	if err = a.store.Train(r.Context(), info, body); err != nil {
		if created {
			if _, rmErr := a.store.RemoveModelIfEmpty(r.Context(), info); rmErr != nil {
				a.logger.Error("Failed to remove model after failed training", "name", name, "error", rmErr)
			}
		}
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			respondWithError(w, http.StatusRequestEntityTooLarge, "Training text too large")
		case errors.Is(err, markov.ErrEmptyInput):
			respondWithError(w, http.StatusUnprocessableEntity, "Training text needs at least two tokens")
		default:
			a.logger.Error("Failed to train model", "name", name, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Training failed: %v", err))
		}
		return
	}
	a.cache.invalidate(name)

	stats, err := a.store.GetModelStats(r.Context(), info)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, newModelResponse(info, stats))
}

func (a *GeneratorAPI) handlePrune(w http.ResponseWriter, r *http.Request) {
	info, ok := a.modelInfo(w, r)
	if !ok {
		return
	}
	var req PruneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	removed, err := a.store.PruneModel(r.Context(), info, req.MinFreq)
	if err != nil {
		a.logger.Error("Failed to prune model", "name", info.Name, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Pruning failed: %v", err))
		return
	}
	a.cache.invalidate(info.Name)
	respondWithJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

func (a *GeneratorAPI) handleExport(w http.ResponseWriter, r *http.Request) {
	info, ok := a.modelInfo(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := a.store.ExportModel(r.Context(), info, &buf); err != nil {
		a.logger.Error("Failed to export model", "name", info.Name, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Export failed: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Name+".json"))
	_, _ = buf.WriteTo(w)
}

func (a *GeneratorAPI) handleImport(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, a.config.Server.MaxBodyBytes)
	info, err := a.store.ImportModel(r.Context(), body)
	if err != nil {
		a.logger.Error("Failed to import model", "error", err)
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Import failed: %v", err))
		return
	}
	a.cache.invalidate(info.Name)

	stats, err := a.store.GetModelStats(r.Context(), info)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, newModelResponse(info, stats))
}

func (a *GeneratorAPI) handleVocabPrune(w http.ResponseWriter, r *http.Request) {
	removed, err := a.store.VocabularyPrune(r.Context())
	if err != nil {
		a.logger.Error("Failed to prune vocabulary", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Vocabulary prune failed: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

func (a *GeneratorAPI) handleStats(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	m, ok := a.model(w, r, name)
	if !ok {
		return
	}
	ms := m.Stats()
	respondWithJSON(w, http.StatusOK, StatsResponse{
		Name:         name,
		Mode:         ms.Mode.String(),
		States:       ms.States,
		Nodes:        ms.Nodes,
		Transitions:  ms.Transitions,
		Observations: ms.Observations,
		DeadEnds:     ms.DeadEnds,
		Terminals:    ms.Terminals,
		Tags:         ms.Tags,
	})
}

func (a *GeneratorAPI) handleGraph(w http.ResponseWriter, r *http.Request) {
	m, ok := a.model(w, r, r.PathValue("name"))
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := m.Graph().WriteDOT(&buf); err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Graph rendering failed: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// handleSentence walks the model from the `word` query parameter. Passing
// `seed` makes the output reproducible.
func (a *GeneratorAPI) handleSentence(w http.ResponseWriter, r *http.Request) {
	word := r.URL.Query().Get("word")
	if word == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'word' is required")
		return
	}
	seed, err := a.store.Tagger().Tokenizer().Normalize(word)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid 'word' parameter")
		return
	}
	opts, rng, err := a.samplingParams(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, ok := a.model(w, r, r.PathValue("name"))
	if !ok {
		return
	}

	walk := m.Walk(seed, rng, opts...)
	respondWithJSON(w, http.StatusOK, SentenceResponse{
		Text:  walk.Text(),
		Path:  walk.Path,
		State: walk.State.String(),
	})
}

func (a *GeneratorAPI) handleParagraph(w http.ResponseWriter, r *http.Request) {
	sentences := 3
	if v := r.URL.Query().Get("sentences"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > maxParagraphSentences {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("'sentences' must be between 0 and %d", maxParagraphSentences))
			return
		}
		sentences = n
	}
	opts, rng, err := a.samplingParams(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, ok := a.model(w, r, r.PathValue("name"))
	if !ok {
		return
	}

	respondWithJSON(w, http.StatusOK, ParagraphResponse{
		Text: m.GenerateParagraph(sentences, rng, opts...),
	})
}

// samplingParams reads seed, max_steps, temperature and top_k from the query
// string on top of the configured defaults.
func (a *GeneratorAPI) samplingParams(r *http.Request) ([]markov.GenerateOption, *rand.Rand, error) {
	q := r.URL.Query()
	opts := a.config.Generation.GenerateOptions()
	var rng *rand.Rand

	if v := q.Get("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid seed %q", v)
		}
		rng = markov.NewRand(seed)
	}
	if v := q.Get("max_steps"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, nil, fmt.Errorf("invalid max_steps %q", v)
		}
		opts = append(opts, markov.WithMaxSteps(n))
	}
	if v := q.Get("temperature"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid temperature %q", v)
		}
		opts = append(opts, markov.WithTemperature(t))
	}
	if v := q.Get("top_k"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil || k < 0 {
			return nil, nil, fmt.Errorf("invalid top_k %q", v)
		}
		opts = append(opts, markov.WithTopK(k))
	}
	return opts, rng, nil
}

func (a *GeneratorAPI) parseMode(mode string) (markov.Mode, bool) {
	if mode == "" {
		mode = a.config.Generation.DefaultMode
	}
	return markov.ParseMode(mode)
}

// modelInfo resolves the {name} path value, writing an error response and
// returning false when it cannot.
func (a *GeneratorAPI) modelInfo(w http.ResponseWriter, r *http.Request) (store.ModelInfo, bool) {
	name := r.PathValue("name")
	info, err := a.store.GetModelInfo(r.Context(), name)
	if err != nil {
		a.respondWithModelError(w, name, err)
		return store.ModelInfo{}, false
	}
	return info, true
}

func (a *GeneratorAPI) model(w http.ResponseWriter, r *http.Request, name string) (*markov.Model, bool) {
	m, err := a.cache.get(r.Context(), name)
	if err != nil {
		a.respondWithModelError(w, name, err)
		return nil, false
	}
	return m, true
}

func (a *GeneratorAPI) respondWithModelError(w http.ResponseWriter, name string, err error) {
	switch {
	case errors.Is(err, store.ErrModelNotFound):
		respondWithError(w, http.StatusNotFound, "Model not found")
	case errors.Is(err, markov.ErrEmptyInput):
		respondWithError(w, http.StatusUnprocessableEntity, "Model has no transitions yet")
	default:
		a.logger.Error("Failed to load model", "name", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
	}
}

func newModelResponse(info store.ModelInfo, stats store.ModelStats) ModelResponse {
	return ModelResponse{
		Name:         info.Name,
		Mode:         info.Mode.String(),
		Transitions:  stats.Transitions,
		Observations: stats.TotalFrequency,
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		err := json.NewEncoder(w).Encode(payload)
		if err != nil {
			fmt.Printf("ERROR: Failed to encode JSON response: %v\n", err)
		}
	}
}
