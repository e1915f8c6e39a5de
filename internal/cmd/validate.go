package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/blueprint/internal/diagram"
	berrors "github.com/felixgeelhaar/blueprint/internal/errors"
	"github.com/felixgeelhaar/blueprint/internal/export"
	"github.com/felixgeelhaar/blueprint/pkg/blueprint/client"
	"github.com/felixgeelhaar/blueprint/pkg/blueprint/types"
)

var validateCmd = &cobra.Command{
	Use:   "validate <diagram.json>",
	Short: "Check a diagram.json document",
	Long: `Check that a diagram.json document imports cleanly, and report whether it
can be exported as is. Every problem is listed, not just the first.

Use "-" to read the diagram from stdin.

Example:
  blueprint validate diagram.json
  cat diagram.json | blueprint validate - --json
  blueprint validate diagram.json --server http://localhost:8080`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

var (
	validateJSON   bool
	validateServer string
)

func init() {
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "print the result as JSON")
	validateCmd.Flags().StringVar(&validateServer, "server", "", "validate through a blueprint server at this URL")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	data, err := readDiagramFile(cmd, args[0])
	if err != nil {
		return err
	}

	var resp *types.ValidateResponse
	if validateServer != "" {
		resp, err = client.New(validateServer).Validate(cmd.Context(), data)
		if err != nil {
			return remoteError(validateServer, err)
		}
	} else {
		resp = validateLocal(data)
	}

	if validateJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	} else {
		printValidation(cmd.OutOrStdout(), args[0], resp)
	}

	if !resp.Valid {
		return invalidDiagramError(resp.Issues)
	}
	return nil
}

// validateLocal mirrors the server's validate endpoint.
func validateLocal(data []byte) *types.ValidateResponse {
	nodes, edges, err := diagram.Parse(data)
	if err != nil {
		resp := &types.ValidateResponse{}
		var verr *diagram.ValidationError
		if errors.As(err, &verr) {
			for _, issue := range verr.Issues {
				resp.Issues = append(resp.Issues, types.Issue{Code: string(issue.Code), Message: issue.Message})
			}
		} else {
			resp.Issues = []types.Issue{{Code: string(berrors.CodeOf(err)), Message: err.Error()}}
		}
		return resp
	}

	resp := &types.ValidateResponse{
		Valid:      true,
		Nodes:      len(nodes),
		Edges:      len(edges),
		Exportable: true,
	}
	if err := export.CheckPreconditions(nodes); err != nil {
		resp.Exportable = false
		resp.Blocker = err.Error()
		var coded *berrors.Error
		if errors.As(err, &coded) {
			resp.Blocker = coded.Message
		}
	}
	return resp
}

func printValidation(w io.Writer, name string, resp *types.ValidateResponse) {
	if !resp.Valid {
		fmt.Fprintf(w, "✗ %s is not a valid diagram\n", name)
		for _, issue := range resp.Issues {
			fmt.Fprintf(w, "  • [%s] %s\n", issue.Code, issue.Message)
		}
		return
	}

	fmt.Fprintf(w, "✓ %s is valid: %d components, %d connections\n", name, resp.Nodes, resp.Edges)
	if resp.Exportable {
		fmt.Fprintln(w, "  Ready to export")
	} else {
		fmt.Fprintf(w, "  Not exportable: %s\n", resp.Blocker)
	}
}

func invalidDiagramError(issues []types.Issue) error {
	if len(issues) == 0 {
		return berrors.NewDiagramInvalidError("the diagram was rejected")
	}
	code := berrors.ErrorCode(issues[0].Code)
	if code.Category() != "DIAGRAM" {
		code = berrors.ErrCodeDiagramInvalid
	}
	msg := issues[0].Message
	if len(issues) > 1 {
		msg = fmt.Sprintf("%s (and %d more problems)", msg, len(issues)-1)
	}
	return berrors.New(code, msg)
}
