package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/seboll13/TextGenerator/pkg/markov"
	"github.com/seboll13/TextGenerator/pkg/store"
)

// sampleFlags are shared by the commands that walk a model.
type sampleFlags struct {
	src         modelSource
	randSeed    uint64
	maxSteps    int
	temperature float64
	topK        int
}

func (f *sampleFlags) register(cmd *cobra.Command) {
	registerSourceFlags(cmd, &f.src)
	cmd.Flags().Uint64Var(&f.randSeed, "rand-seed", 0, "seed for the random source (random when unset)")
	cmd.Flags().IntVar(&f.maxSteps, "max-steps", markov.DefaultMaxSteps, "maximum walk length, 0 for unbounded")
	cmd.Flags().Float64Var(&f.temperature, "temperature", 1.0, "sampling temperature, 0 always picks the most likely word")
	cmd.Flags().IntVar(&f.topK, "top-k", 0, "only sample from the k most likely words, 0 for all")
}

func registerSourceFlags(cmd *cobra.Command, src *modelSource) {
	cmd.Flags().StringVarP(&src.model, "model", "m", "", "name of a stored model")
	cmd.Flags().StringVarP(&src.input, "input", "i", "", "build a model from this text file instead of the database")
	cmd.Flags().BoolVar(&src.tagged, "tagged", false, "build the --input model with part of speech tags")
}

// options starts from the configured defaults and applies the flags the user
// actually set.
func (f *sampleFlags) options(cmd *cobra.Command, cfg *GenerationConfig) []markov.GenerateOption {
	opts := cfg.GenerateOptions()
	if cmd.Flags().Changed("max-steps") {
		opts = append(opts, markov.WithMaxSteps(f.maxSteps))
	}
	if cmd.Flags().Changed("temperature") {
		opts = append(opts, markov.WithTemperature(f.temperature))
	}
	if cmd.Flags().Changed("top-k") {
		opts = append(opts, markov.WithTopK(f.topK))
	}
	return opts
}

func (f *sampleFlags) rng(cmd *cobra.Command) *rand.Rand {
	if cmd.Flags().Changed("rand-seed") {
		return markov.NewRand(f.randSeed)
	}
	return nil
}

func newGenerateCmd(a *app) *cobra.Command {
	flags := &sampleFlags{}
	cmd := &cobra.Command{
		Use:   "generate <seed-word>",
		Short: "Generate one sentence starting from a seed word",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadModel(cmd.Context(), flags.src)
			if err != nil {
				return err
			}
			seed, err := a.seedWord(args[0])
			if err != nil {
				return err
			}
			if !m.Contains(seed) {
				a.logger.Warn("Seed word has no successors in the model", "seed", seed)
			}

			walk := m.Walk(seed, flags.rng(cmd), flags.options(cmd, a.config.Generation)...)
			a.logger.Debug("Walk finished", "state", walk.State.String(), "length", len(walk.Path))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), walk.Text())
			return err
		},
	}
	flags.register(cmd)
	return cmd
}

func newParagraphCmd(a *app) *cobra.Command {
	flags := &sampleFlags{}
	var sentences int
	cmd := &cobra.Command{
		Use:   "paragraph",
		Short: "Generate several sentences, each from a random starter word",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sentences < 0 {
				return fmt.Errorf("--sentences must not be negative")
			}
			m, err := a.loadModel(cmd.Context(), flags.src)
			if err != nil {
				return err
			}
			text := m.GenerateParagraph(sentences, flags.rng(cmd), flags.options(cmd, a.config.Generation)...)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&sentences, "sentences", "n", 3, "number of sentences")
	return cmd
}

func newTrainCmd(a *app) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "train <model> [file...]",
		Short: "Train a stored model from text files or stdin",
		Long: `
Train a stored model from text files, or from stdin when no file is given.
The model is created on first use; --mode only applies then. Training the
same model again adds to its counts.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode == "" {
				mode = a.config.Generation.DefaultMode
			}
			parsed, ok := markov.ParseMode(mode)
			if !ok {
				return fmt.Errorf("unknown mode %q, want plain or tagged", mode)
			}

			s, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			ctx := cmd.Context()
			_, err = s.GetModelInfo(ctx, args[0])
			created := errors.Is(err, store.ErrModelNotFound)
			info, err := s.EnsureModel(ctx, args[0], parsed)
			if err != nil {
				return err
			}

			if err = trainAll(cmd, s, info, args[1:]); err != nil {
				if created {
					if _, rmErr := s.RemoveModelIfEmpty(ctx, info); rmErr != nil {
						a.logger.Error("Failed to remove model after failed training", "name", info.Name, "error", rmErr)
					}
				}
				return err
			}

			stats, err := s.GetModelStats(ctx, info)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "model %s (%s): %s transitions, %s observations\n",
				info.Name, info.Mode, humanize.Comma(int64(stats.Transitions)), humanize.Comma(int64(stats.TotalFrequency)))
			return err
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "model mode when creating it: plain or tagged (default from config)")
	return cmd
}

// trainAll trains info from each file in turn, or from stdin when files is
// empty.
func trainAll(cmd *cobra.Command, s *store.Store, info store.ModelInfo, files []string) error {
	if len(files) == 0 {
		if err := s.Train(cmd.Context(), info, cmd.InOrStdin()); err != nil {
			return fmt.Errorf("training from stdin failed: %w", err)
		}
	}
	for _, path := range files {
		if err := trainFile(cmd, s, info, path); err != nil {
			return err
		}
	}
	return nil
}

func trainFile(cmd *cobra.Command, s *store.Store, info store.ModelInfo, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err = s.Train(cmd.Context(), info, f); err != nil {
		return fmt.Errorf("training from %s failed: %w", path, err)
	}
	return nil
}

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List stored models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			stats, err := s.GetStats(cmd.Context())
			if err != nil {
				return err
			}
			for _, info := range stats.Models {
				if _, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", info.Name, info.Mode); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <model>",
		Short: "Delete a stored model and its transitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			info, err := s.GetModelInfo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return s.RemoveModel(cmd.Context(), info)
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <model>",
		Short: "Export a stored model as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			info, err := s.GetModelInfo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, func(w io.Writer) error {
				return s.ExportModel(cmd.Context(), info, w)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to this file instead of stdout")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Import a JSON model, merging it into an existing model of the same name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				r = f
			}

			info, err := s.ImportModel(cmd.Context(), r)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported model %s (%s)\n", info.Name, info.Mode)
			return err
		},
	}
}

func newPruneCmd(a *app) *cobra.Command {
	var minFreq int
	var vocab bool
	cmd := &cobra.Command{
		Use:   "prune <model>",
		Short: "Remove transitions seen --min-freq times or fewer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			ctx := cmd.Context()
			info, err := s.GetModelInfo(ctx, args[0])
			if err != nil {
				return err
			}
			removed, err := s.PruneModel(ctx, info, minFreq)
			if err != nil {
				return err
			}
			out := fmt.Sprintf("removed %s transitions", humanize.Comma(removed))
			if vocab {
				words, err := s.VocabularyPrune(ctx)
				if err != nil {
					return err
				}
				out += fmt.Sprintf(" and %s unused words", humanize.Comma(words))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().IntVar(&minFreq, "min-freq", 1, "remove transitions with this frequency or less")
	cmd.Flags().BoolVar(&vocab, "vocab", false, "also drop words no model uses anymore")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [model]",
		Short: "Show database statistics, or the statistics of one model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			ctx := cmd.Context()
			w := cmd.OutOrStdout()
			if len(args) == 0 {
				stats, err := s.GetStats(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "models: %d\nvocabulary: %s words\n", len(stats.Models), humanize.Comma(int64(stats.VocabSize)))
				for _, info := range stats.Models {
					ms := stats.Stats[info.Id]
					fmt.Fprintf(w, "  %s (%s): %s transitions, %s observations\n",
						info.Name, info.Mode, humanize.Comma(int64(ms.Transitions)), humanize.Comma(int64(ms.TotalFrequency)))
				}
				return nil
			}

			info, err := s.GetModelInfo(ctx, args[0])
			if err != nil {
				return err
			}
			m, err := s.LoadModel(ctx, info)
			if err != nil {
				return err
			}
			ms := m.Stats()
			fmt.Fprintf(w, "model: %s\nmode: %s\nstates: %s\nnodes: %s\ntransitions: %s\nobservations: %s\ndead ends: %s\nterminals: %d\ntags: %d\n",
				info.Name, ms.Mode,
				humanize.Comma(int64(ms.States)),
				humanize.Comma(int64(ms.Nodes)),
				humanize.Comma(int64(ms.Transitions)),
				humanize.Comma(int64(ms.Observations)),
				humanize.Comma(int64(ms.DeadEnds)),
				ms.Terminals, ms.Tags)
			return nil
		},
	}
}

func newDotCmd(a *app) *cobra.Command {
	var src modelSource
	var out string
	cmd := &cobra.Command{
		Use:   "dot",
		Short: "Write the transition graph of a model in Graphviz DOT format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.loadModel(cmd.Context(), src)
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, m.Graph().WriteDOT)
		},
	}
	registerSourceFlags(cmd, &src)
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to this file instead of stdout")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.config.Server.ApiAddr = addr
			}
			s, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			return runServer(cmd.Context(), a.config, a.logger, s)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides the config file)")
	return cmd
}

// writeOutput renders through write either to stdout or, atomically, to path.
func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(cmd.OutOrStdout())
	}
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return err
	}
	size := buf.Len()
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	_, err := fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%s)\n", path, humanize.Bytes(uint64(size)))
	return err
}
