package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/blueprint/internal/diagram"
	"github.com/felixgeelhaar/blueprint/internal/topology"
	"github.com/felixgeelhaar/blueprint/pkg/blueprint/client"
)

var edgesCmd = &cobra.Command{
	Use:   "edges <diagram.json>",
	Short: "Draw the default connections between components",
	Long: `Propose the connections a diagram is missing, following the default rules
(frontend to backend, backend to storage, backend to auth, ...). Existing
connections are kept and never duplicated.

Without --write or --out the proposed connections are only listed.

Example:
  blueprint edges diagram.json
  blueprint edges diagram.json --write
  blueprint edges diagram.json --out with-edges.json`,
	Args: cobra.ExactArgs(1),
	RunE: runEdges,
}

var (
	edgesWrite  bool
	edgesOut    string
	edgesServer string
)

func init() {
	edgesCmd.Flags().BoolVarP(&edgesWrite, "write", "w", false, "rewrite the input file with the new connections")
	edgesCmd.Flags().StringVarP(&edgesOut, "out", "o", "", "write the updated diagram to this file")
	edgesCmd.Flags().StringVar(&edgesServer, "server", "", "draw connections through a blueprint server at this URL")

	rootCmd.AddCommand(edgesCmd)
}

func runEdges(cmd *cobra.Command, args []string) error {
	target := edgesOut
	if edgesWrite {
		if args[0] == stdinPath {
			return fmt.Errorf("--write needs a file, not stdin; use --out instead")
		}
		target = args[0]
	}

	data, nodes, edges, err := loadDiagram(cmd, args[0])
	if err != nil {
		return err
	}

	var (
		added   []diagram.Edge
		updated []byte
	)
	if edgesServer != "" {
		resp, err := client.New(edgesServer).AutoEdges(cmd.Context(), data)
		if err != nil {
			return remoteError(edgesServer, err)
		}
		_, merged, err := diagram.Parse(resp.Diagram)
		if err != nil {
			return fmt.Errorf("server returned an invalid diagram: %w", err)
		}
		if len(merged) < len(edges) {
			return fmt.Errorf("server dropped existing connections")
		}
		added = merged[len(edges):]
		updated = resp.Diagram
	} else {
		added = topology.AutoGenerateEdges(nodes, edges)
		updated, err = diagram.Marshal(nodes, topology.Merge(edges, added), time.Now())
		if err != nil {
			return err
		}
	}

	printAddedEdges(cmd.OutOrStdout(), nodes, added)

	if target == "" || len(added) == 0 {
		return nil
	}
	if err := writeFileAtomic(target, updated); err != nil {
		return err
	}
	appLogger.Info("diagram updated", "path", target, "added", len(added))
	fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Wrote %s\n", target)
	return nil
}

func printAddedEdges(w io.Writer, nodes []diagram.Node, added []diagram.Edge) {
	if len(added) == 0 {
		fmt.Fprintln(w, "No connections to add")
		return
	}
	index := diagram.NodeIndex(nodes)
	fmt.Fprintf(w, "%d connection(s) to add:\n", len(added))
	for _, e := range added {
		fmt.Fprintf(w, "  %s → %s", displayName(index[e.Source]), displayName(index[e.Target]))
		if l := e.Label(); l != "" {
			fmt.Fprintf(w, " (%s)", l)
		}
		fmt.Fprintln(w)
	}
}

func displayName(n diagram.Node) string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}
