package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"cdhsearch/internal/db"
	"cdhsearch/internal/retrieval"

	"github.com/spf13/cobra"
)

var (
	searchDataset string
	searchLimit   int
	searchJSON    bool
)

// imageExts are the formats the decoder registers.
var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}

var searchCmd = &cobra.Command{
	Use:   "search [query-image]",
	Short: "Rank a directory of images against a query image",
	Long: `Indexes every PNG, JPEG and GIF file in the dataset directory, in
lexical order, then prints the images most similar to the query.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchDataset, "dataset", "d", "", "directory of images to search")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", retrieval.DefaultTopK, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	_ = searchCmd.MarkFlagRequired("dataset")
	rootCmd.AddCommand(searchCmd)
}

type searchOutput struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	conf, err := loadConfig(true)
	if err != nil {
		return err
	}
	sources, err := datasetSources(searchDataset)
	if err != nil {
		return err
	}

	database, err := db.New(conf)
	if err != nil {
		return err
	}
	defer database.Close()

	report, err := database.LoadDataset(cmd.Context(), sources, func(p db.Progress) {
		if p.Err != nil {
			cmd.PrintErrf("skipping %s: %v\n", p.ID, p.Err)
		}
	})
	if err != nil {
		return fmt.Errorf("index dataset: %w", err)
	}
	if report.Indexed == 0 {
		return errors.New("no images could be indexed")
	}

	results, err := database.Search(cmd.Context(), db.FileSource(args[0]), searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := make([]searchOutput, len(results))
	for i, r := range results {
		out[i] = searchOutput{ID: r.Entry.ID, Score: r.Score}
	}
	if searchJSON {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tIMAGE\tSIMILARITY")
	for i, r := range out {
		fmt.Fprintf(w, "%d\t%s\t%.1f%%\n", i+1, r.ID, r.Score*100)
	}
	return w.Flush()
}

// datasetSources lists the images directly under dir in lexical order.
func datasetSources(dir string) ([]db.Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images found in %s", dir)
	}
	sort.Strings(paths)

	sources := make([]db.Source, len(paths))
	for i, p := range paths {
		sources[i] = db.FileSource(p)
	}
	return sources, nil
}
