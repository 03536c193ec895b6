package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/feedtag/internal/corpus"
	logpkg "github.com/kailas-cloud/feedtag/internal/logger"
	"github.com/kailas-cloud/feedtag/internal/usecase/evaluate"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate --corpus entries.jsonl",
	Short: "Grid-search reduce thresholds on a tagged corpus",
	Long: `Evaluate scores every reduce config of the grid by its mean F-beta over
repeated random train/test splits and prints the configs best first.`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().String("corpus", "", "JSON-lines corpus file (- for stdin)")
	evaluateCmd.Flags().Int("folds", 0, "number of random splits (default from config)")
	evaluateCmd.Flags().Uint64("seed", 0, "split seed (default from config)")
	evaluateCmd.Flags().Int("top", 10, "print only the best N configs (0 prints all)")
	evaluateCmd.Flags().String("format", "table", "output format (table|json)")
	evaluateCmd.Flags().String("log-level", "", "log level for progress on stderr")
	_ = evaluateCmd.MarkFlagRequired("corpus")
}

// resultJSON is one evaluated config in --format json.
type resultJSON struct {
	MinDocSupport   int      `json:"min_doc_support"`
	MaxDocFraction  float64  `json:"max_doc_fraction"`
	MinProbDistance float64  `json:"min_prob_distance"`
	MeanF           *float64 `json:"mean_f"`
	ValidFolds      int      `json:"valid_folds"`
	TP              int      `json:"tp"`
	FP              int      `json:"fp"`
	TN              int      `json:"tn"`
	FN              int      `json:"fn"`
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	path, _ := cmd.Flags().GetString("corpus")
	folds, _ := cmd.Flags().GetInt("folds")
	seed, _ := cmd.Flags().GetUint64("seed")
	top, _ := cmd.Flags().GetInt("top")
	format, _ := cmd.Flags().GetString("format")
	level, _ := cmd.Flags().GetString("log-level")

	if format != "table" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}

	logger, err := logpkg.NewCLILogger(level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	tok, err := newTokenizer(cfg.Tokenizer)
	if err != nil {
		return err
	}
	defer tok.Close()

	entries, err := corpus.ReadFile(path)
	if err != nil {
		return err
	}
	samples := evaluate.SamplesFromEntries(entries, tok)
	logger.Info("corpus loaded", zap.Int("entries", len(entries)))

	ec := evaluateConfig(cfg.Evaluate, cfg.Classifier.TopWords)
	if folds > 0 {
		ec.Folds = folds
	}
	if seed > 0 {
		ec.Seed = seed
	}
	svc, err := evaluate.New(ec, logger)
	if err != nil {
		return err
	}

	results, err := svc.Run(cmd.Context(), samples)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if top > 0 && top < len(results) {
		results = results[:top]
	}

	if format == "json" {
		return writeResultsJSON(cmd.OutOrStdout(), results)
	}
	return writeResultsTable(cmd.OutOrStdout(), results)
}

func writeResultsTable(w io.Writer, results []evaluate.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MIN_DOC\tMAX_DOC_P\tMIN_P\tMEAN_F\tFOLDS\tTP\tFP\tTN\tFN")
	for _, r := range results {
		fmt.Fprintf(tw, "%d\t%.2f\t%.3f\t%.4f\t%d\t%d\t%d\t%d\t%d\n",
			r.Reduce.MinDocSupport, r.Reduce.MaxDocFraction, r.Reduce.MinProbDistance,
			r.MeanF, r.ValidFolds, r.Confusion.TP, r.Confusion.FP, r.Confusion.TN, r.Confusion.FN)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

func writeResultsJSON(w io.Writer, results []evaluate.Result) error {
	enc := json.NewEncoder(w)
	for _, r := range results {
		row := resultJSON{
			MinDocSupport:   r.Reduce.MinDocSupport,
			MaxDocFraction:  r.Reduce.MaxDocFraction,
			MinProbDistance: r.Reduce.MinProbDistance,
			ValidFolds:      r.ValidFolds,
			TP:              r.Confusion.TP,
			FP:              r.Confusion.FP,
			TN:              r.Confusion.TN,
			FN:              r.Confusion.FN,
		}
		// JSON has no NaN
		if !math.IsNaN(r.MeanF) {
			f := r.MeanF
			row.MeanF = &f
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("write results: %w", err)
		}
	}
	return nil
}
