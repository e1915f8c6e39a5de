package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/blueprint/internal/template"
	"github.com/felixgeelhaar/blueprint/internal/topology"
)

var inferCmd = &cobra.Command{
	Use:   "infer <diagram.json>",
	Short: "Show the integrations inferred between components",
	Long: `List every ordered pair of components with a known communication pattern,
and the order in which the components should be built. This is what the
exported documents describe, whether or not the diagram draws the edges.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfer,
}

var scopeCmd = &cobra.Command{
	Use:   "scope",
	Short: "List the concerns that can be marked out of scope",
	Long: `List the out-of-scope catalog. Pass ids to 'blueprint export --exclude'
to tell agents not to build those concerns. Unknown ids are accepted and get
a generic rationale.`,
	Args: cobra.NoArgs,
	RunE: runScope,
}

var inferJSON bool

type inferredPair struct {
	Source  string `json:"source"`
	Target  string `json:"target"`
	Pattern string `json:"pattern"`
}

type inferResult struct {
	Pairs      []inferredPair `json:"pairs"`
	BuildOrder []string       `json:"build_order"`
}

func init() {
	inferCmd.Flags().BoolVar(&inferJSON, "json", false, "print the result as JSON")

	rootCmd.AddCommand(inferCmd)
	rootCmd.AddCommand(scopeCmd)
}

func runInfer(cmd *cobra.Command, args []string) error {
	_, nodes, _, err := loadDiagram(cmd, args[0])
	if err != nil {
		return err
	}

	res := inferResult{Pairs: []inferredPair{}}
	for _, p := range topology.DeriveIntegrationPairs(nodes) {
		res.Pairs = append(res.Pairs, inferredPair{
			Source:  displayName(p.Source),
			Target:  displayName(p.Target),
			Pattern: p.Pattern,
		})
	}
	for _, n := range template.BuildOrder(nodes) {
		res.BuildOrder = append(res.BuildOrder, displayName(n))
	}

	out := cmd.OutOrStdout()
	if inferJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if len(res.Pairs) == 0 {
		fmt.Fprintln(out, "No integrations inferred")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tTARGET\tPATTERN") //nolint:errcheck
		fmt.Fprintln(w, "------\t------\t-------") //nolint:errcheck
		for _, p := range res.Pairs {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Source, p.Target, p.Pattern) //nolint:errcheck
		}
		w.Flush() //nolint:errcheck
	}

	if len(res.BuildOrder) > 0 {
		fmt.Fprintln(out, "\nBuild order:")
		for i, name := range res.BuildOrder {
			fmt.Fprintf(out, "  %d. %s\n", i+1, name)
		}
	}
	return nil
}

func runScope(cmd *cobra.Command, _ []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tRATIONALE") //nolint:errcheck
	fmt.Fprintln(w, "--\t-----\t---------") //nolint:errcheck
	for _, item := range template.OutOfScopeItems() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", item.ID, item.Title, item.Rationale) //nolint:errcheck
	}
	return w.Flush()
}
