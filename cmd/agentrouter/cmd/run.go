package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter/runtime"
)

func (a *app) runCmd() *cobra.Command {
	var (
		id     string
		fields []string
	)
	cmd := &cobra.Command{
		Use:   "run <workflow> <message>",
		Short: "Start a workflow run and print its snapshot",
		Example: `  agentrouter run credit_approval "Process application APP1 for customer C1"
  agentrouter run credit_approval "..." --field amount=5000 --id app-1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seedFields, err := parseFields(fields)
			if err != nil {
				return err
			}

			e, err := a.setup(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			snap, err := e.runtime.Start(cmd.Context(), args[0], runtime.Seed{
				Content:    args[1],
				Fields:     seedFields,
				WorkflowID: id,
			})
			return printSnapshot(cmd.OutOrStdout(), snap, err)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "run id (generated when empty)")
	cmd.Flags().StringArrayVar(&fields, "field", nil, "seed field as key=value (repeatable)")
	return cmd
}

func (a *app) resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <id> <payload>",
		Short: "Deliver input to a run waiting at a gate",
		Long: `Deliver input to a run waiting at a gate.

A payload that parses as JSON is delivered as that value, so an object
payload sets fields on the run. Anything else is delivered as text.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			var payload any = args[1]
			if json.Valid([]byte(args[1])) {
				payload = json.RawMessage(args[1])
			}
			snap, err := e.runtime.Resume(cmd.Context(), args[0], payload)
			return printSnapshot(cmd.OutOrStdout(), snap, err)
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [id]",
		Short: "Show a run snapshot, or list stored runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if len(args) == 1 {
				snap, err := e.runtime.Status(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printSnapshot(cmd.OutOrStdout(), snap, nil)
			}

			runs, err := e.runtime.Runs(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tREVISION\tUPDATED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", r.WorkflowID, r.Revision, r.UpdatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

// printSnapshot writes snap as indented JSON when there is one to show,
// then returns err. A run that failed still prints its snapshot.
func printSnapshot(w io.Writer, snap runtime.Snapshot, err error) error {
	if snap.WorkflowID != "" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(snap); encErr != nil {
			return encErr
		}
	}
	return err
}

func parseFields(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	fields := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid field %q, want key=value", p)
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			fields[k] = decoded
		} else {
			fields[k] = v
		}
	}
	return fields, nil
}
