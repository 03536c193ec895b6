package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/feedtag/internal/config"
	"github.com/kailas-cloud/feedtag/internal/corpus"
	logpkg "github.com/kailas-cloud/feedtag/internal/logger"
	"github.com/kailas-cloud/feedtag/internal/usecase/tagging"
)

var classifyCmd = &cobra.Command{
	Use:   "classify --input unread.jsonl [--corpus train.jsonl]",
	Short: "Recommend tags for unread, untagged entries",
	Long: `Classify trains an in-memory classifier per tag on --corpus, or loads the
evidence of the configured storage when --corpus is omitted, and prints one JSON
line per entry that has a suggested or auto tag.`,
	Args: cobra.NoArgs,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().String("corpus", "", "JSON-lines training corpus (default: configured storage)")
	classifyCmd.Flags().String("input", "", "JSON-lines entries to classify (- for stdin)")
	classifyCmd.Flags().String("log-level", "", "log level for progress on stderr")
	_ = classifyCmd.MarkFlagRequired("input")
}

// recommendationJSON is one output line.
type recommendationJSON struct {
	EntryID string    `json:"entry_id"`
	Title   string    `json:"title"`
	Tags    []tagJSON `json:"tags"`
}

type tagJSON struct {
	Tag         string  `json:"tag"`
	Probability float64 `json:"probability"`
	Verdict     string  `json:"verdict"`
}

func runClassify(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	corpusPath, _ := cmd.Flags().GetString("corpus")
	inputPath, _ := cmd.Flags().GetString("input")
	level, _ := cmd.Flags().GetString("log-level")

	logger, err := logpkg.NewCLILogger(level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	ctx := cmd.Context()

	tok, err := newTokenizer(cfg.Tokenizer)
	if err != nil {
		return err
	}
	defer tok.Close()

	tcfg, err := taggingConfig(cfg.Classifier)
	if err != nil {
		return err
	}

	var store tagging.TagStore
	if corpusPath == "" {
		if !cfg.Storage.Durable() {
			return fmt.Errorf("--corpus is required with storage driver %q", config.DriverMemory)
		}
		st, err := openStorage(ctx, cfg.Storage, logger)
		if err != nil {
			return err
		}
		defer st.close()
		store = st.tags
	}

	svc, err := tagging.New(store, tok, tcfg, logger)
	if err != nil {
		return err
	}

	if corpusPath != "" {
		entries, err := corpus.ReadFile(corpusPath)
		if err != nil {
			return err
		}
		n, err := svc.TrainEntries(ctx, entries)
		if err != nil {
			return err
		}
		// Reduce once here unless TrainEntries already did.
		if !tcfg.ReduceOnTrain {
			if _, err := svc.ReduceAll(ctx); err != nil {
				return err
			}
		}
		logger.Info("classifiers trained", zap.Int("entries", len(entries)), zap.Int("documents", n))
	} else if err := svc.Load(ctx); err != nil {
		return fmt.Errorf("load tags: %w", err)
	}

	input, err := corpus.ReadFile(inputPath)
	if err != nil {
		return err
	}
	recs, err := svc.Recommend(ctx, input)
	if err != nil {
		return err
	}
	return writeRecommendations(cmd.OutOrStdout(), recs)
}

func writeRecommendations(w io.Writer, recs []tagging.EntryRecommendation) error {
	enc := json.NewEncoder(w)
	for _, r := range recs {
		line := recommendationJSON{EntryID: r.EntryID, Title: r.Title, Tags: make([]tagJSON, len(r.Recommendations))}
		for i, t := range r.Recommendations {
			line.Tags[i] = tagJSON{Tag: t.Tag, Probability: t.Probability, Verdict: string(t.Verdict)}
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("write recommendations: %w", err)
		}
	}
	return nil
}
