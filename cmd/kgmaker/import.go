package main

import (
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/kgmaker"
	"github.com/brunobiangulo/kgmaker/store"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import triple spreadsheets into the graph database",
	Long: `Import every spreadsheet in --dir into the graph database. Each file is
classified as relationship or attribute triples from its kind marker or,
failing that, its third header column. Other files are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		asJSON, _ := cmd.Flags().GetBool("json")

		req := kgmaker.ImportRequest{Dir: dir, Graph: graphFlags(cmd)}
		p, err := kgmaker.New(cfg)
		if err != nil {
			return err
		}
		return followJob(cmd.OutOrStdout(), p.StartImport(cmd.Context(), req), asJSON)
	},
}

func init() {
	importCmd.Flags().String("dir", "", "Directory of triple spreadsheets")
	importCmd.Flags().Bool("json", false, "Print events as JSON lines")
	addGraphFlags(importCmd)
	rootCmd.AddCommand(importCmd)
}

// addGraphFlags registers the graph connection flags on cmd.
func addGraphFlags(cmd *cobra.Command) {
	cmd.Flags().String("uri", "", "Graph database URI (default from config)")
	cmd.Flags().String("username", "", "Graph database user")
	cmd.Flags().String("password", "", "Graph database password")
}

// graphFlags returns the connection described by the flags. An empty URI
// means the configured database.
func graphFlags(cmd *cobra.Command) store.Config {
	uri, _ := cmd.Flags().GetString("uri")
	user, _ := cmd.Flags().GetString("username")
	pass, _ := cmd.Flags().GetString("password")
	if uri == "" {
		gc := cfg.Graph
		if user != "" {
			gc.Username, gc.Password = user, pass
		}
		return gc
	}
	return store.Config{URI: uri, Username: user, Password: pass}
}
