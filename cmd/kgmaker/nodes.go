package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/kgmaker"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "Query nodes in the graph database",
	Long: `List nodes, look one up with its neighbours, or search by similarity.

Examples:
  kgmaker nodes                         # first 100 nodes and table counts
  kgmaker nodes --category 植物          # nodes of one category
  kgmaker nodes --category 植物 --name 红树  # one node and its edges
  kgmaker nodes --similar 红树林 --k 5     # needs an embedding provider`,
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		name, _ := cmd.Flags().GetString("name")
		similar, _ := cmd.Flags().GetString("similar")
		limit, _ := cmd.Flags().GetInt("limit")
		k, _ := cmd.Flags().GetInt("k")

		p, err := kgmaker.New(cfg)
		if err != nil {
			return err
		}
		g, err := p.OpenGraph(graphFlags(cmd))
		if err != nil {
			return err
		}
		defer g.Close()

		ctx := cmd.Context()
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		switch {
		case similar != "":
			found, err := p.SimilarNodes(ctx, g, similar, k)
			if err != nil {
				return err
			}
			return enc.Encode(found)

		case name != "":
			if category == "" {
				return fmt.Errorf("--name needs --category")
			}
			n, err := g.GetNode(ctx, category, name)
			if err != nil {
				return err
			}
			nbs, err := g.Neighbors(ctx, n.ID, limit)
			if err != nil {
				return err
			}
			return enc.Encode(map[string]any{"node": n, "neighbors": nbs})

		default:
			nodes, err := g.ListNodes(ctx, category, limit)
			if err != nil {
				return err
			}
			stats, err := g.Counts(ctx)
			if err != nil {
				return err
			}
			return enc.Encode(map[string]any{"nodes": nodes, "counts": stats})
		}
	},
}

func init() {
	nodesCmd.Flags().String("category", "", "Restrict to one category")
	nodesCmd.Flags().String("name", "", "Node name to look up (with --category)")
	nodesCmd.Flags().String("similar", "", "Text to search for by embedding similarity")
	nodesCmd.Flags().Int("limit", 100, "Maximum nodes or neighbours")
	nodesCmd.Flags().Int("k", 10, "Number of similar nodes")
	addGraphFlags(nodesCmd)
	rootCmd.AddCommand(nodesCmd)
}
