package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sanonone/kektorflow/pkg/core/types"
	"github.com/sanonone/kektorflow/pkg/tasks"
)

var (
	retrieveMaxResults int
	retrieveThreshold  float64
	retrieveUpdateAll  bool
	retrieveJSON       bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <prompt>",
	Short: "Sync cluster embeddings and print the chunks most similar to a prompt",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRetrieve,
}

func init() {
	f := retrieveCmd.Flags()
	f.IntVarP(&retrieveMaxResults, "max-results", "k", 0, "maximum number of chunks (default from config)")
	f.Float64VarP(&retrieveThreshold, "threshold", "t", 0, "initial similarity threshold (default from config)")
	f.BoolVar(&retrieveUpdateAll, "update-all", false, "regenerate embeddings for every item")
	f.BoolVar(&retrieveJSON, "json", false, "print chunks as JSON")
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	params := tasks.RetrievalParams{
		Prompt:              strings.Join(args, " "),
		MaxResults:          cfg.Retrieval.MaxResults,
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		UpdateAll:           retrieveUpdateAll,
	}
	if cmd.Flags().Changed("max-results") {
		params.MaxResults = retrieveMaxResults
	}
	if cmd.Flags().Changed("threshold") {
		params.SimilarityThreshold = retrieveThreshold
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var res tasks.RetrievalResult
	var runErr error
	if err := a.store.Update(func(c *types.DataCluster) error {
		res, runErr = a.retrieval.Run(cmd.Context(), a.apis, c, params)
		return nil
	}); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	if retrieveJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Chunks)
	}
	for i, m := range res.Matches {
		fmt.Fprintf(out, "#%d  similarity=%.4f  index=%d\n%s\n\n", i+1, m.Similarity, m.Chunk.Index, m.Chunk.TextContent)
	}
	if len(res.Matches) == 0 {
		fmt.Fprintln(out, "no chunks found")
	}
	return nil
}
