package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sanonone/kektorflow/pkg/cluster"
	"github.com/sanonone/kektorflow/pkg/core/types"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Inspect or extend the data cluster file",
}

var clusterMessageRole string

var clusterAddFileCmd = &cobra.Command{
	Use:   "add-file <path>...",
	Short: "Add files by path; their content is loaded when embeddings are synced",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cluster.Open(cfg.Cluster)
		if err != nil {
			return err
		}
		return store.Update(func(c *types.DataCluster) error {
			for _, p := range args {
				abs, err := filepath.Abs(p)
				if err != nil {
					return err
				}
				c.Files = append(c.Files, &types.FileReference{RefID: types.NewID(), Filename: filepath.Base(p), Path: abs})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d files to %s\n", len(args), cfg.Cluster)
			return nil
		})
	},
}

var clusterAddMessageCmd = &cobra.Command{
	Use:   "add-message <text>",
	Short: "Add a message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cluster.Open(cfg.Cluster)
		if err != nil {
			return err
		}
		return store.Update(func(c *types.DataCluster) error {
			c.Messages = append(c.Messages, &types.MessageReference{RefID: types.NewID(), Role: clusterMessageRole, Content: args[0]})
			return nil
		})
	},
}

var clusterStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print item and embedding counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := cluster.Load(cfg.Cluster)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(c.Stats())
	},
}

func init() {
	clusterAddMessageCmd.Flags().StringVar(&clusterMessageRole, "role", "user", "message role")
	clusterCmd.AddCommand(clusterAddFileCmd, clusterAddMessageCmd, clusterStatsCmd)
}
