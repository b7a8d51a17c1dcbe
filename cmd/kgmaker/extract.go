package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/kgmaker"
	"github.com/brunobiangulo/kgmaker/ontology"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract triples from the text files in a directory",
	Long: `Extract triples from every .txt file in --input, in directory-listing
order, and append them to ERTriples.xlsx or EATriples.xlsx in --output.

Without --output the triples are only printed. --kind all runs a
relationship pass followed by an attribute pass.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		kindFlag, _ := cmd.Flags().GetString("kind")
		asJSON, _ := cmd.Flags().GetBool("json")

		req := kgmaker.ExtractRequest{InputDir: input, OutputDir: output}
		all := kindFlag == "all"
		if !all {
			kind, err := ontology.ParseKind(kindFlag)
			if err != nil {
				return err
			}
			req.Kind = kind
		}
		if cmd.Flags().Changed("delay") {
			d, _ := cmd.Flags().GetDuration("delay")
			req.Delay = &d
		}

		p, err := kgmaker.New(cfg)
		if err != nil {
			return err
		}

		var job *kgmaker.Job
		if all {
			job = p.StartExtractAll(cmd.Context(), req)
		} else {
			job = p.StartExtract(cmd.Context(), req)
		}
		return followJob(cmd.OutOrStdout(), job, asJSON)
	},
}

func init() {
	extractCmd.Flags().String("input", "", "Directory of input text files")
	extractCmd.Flags().String("output", "", "Directory for the triple spreadsheets")
	extractCmd.Flags().String("kind", "relationship", "Ontology: relationship, attribute or all")
	extractCmd.Flags().Duration("delay", 0, "Pause between model calls (overrides config)")
	extractCmd.Flags().Bool("json", false, "Print events as JSON lines")
	rootCmd.AddCommand(extractCmd)
}

// followJob prints a job's events as they arrive and then its summary.
func followJob(w io.Writer, job *kgmaker.Job, asJSON bool) error {
	enc := json.NewEncoder(w)
	for e := range job.Events() {
		if asJSON {
			if err := enc.Encode(e); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintln(w, e.Message)
	}

	report, err := job.Wait()
	if report != nil {
		if asJSON {
			_ = enc.Encode(report)
		} else {
			printReport(w, report)
		}
	}
	if err != nil {
		return err
	}
	if ferr := report.Err(); ferr != nil {
		return fmt.Errorf("%d file(s) failed", len(report.Failures))
	}
	return nil
}

func printReport(w io.Writer, r *kgmaker.RunReport) {
	fmt.Fprintf(w, "files: %d", r.Files)
	if r.Edges > 0 || r.Exported > 0 {
		fmt.Fprintf(w, "  edges: %d  exported rows: %d", r.Edges, r.Exported)
	}
	if r.Rows > 0 {
		fmt.Fprintf(w, "  rows: %d  new nodes: %d  new edges: %d", r.Rows, r.NodesCreated, r.EdgesCreated)
	}
	if n := len(r.Skipped) + len(r.Unknown); n > 0 {
		fmt.Fprintf(w, "  skipped: %d", n)
	}
	if len(r.Failures) > 0 {
		fmt.Fprintf(w, "  failed: %d", len(r.Failures))
	}
	fmt.Fprintln(w)
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  %v\n", f)
	}
}
