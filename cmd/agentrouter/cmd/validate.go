package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter/config"
)

// validateBaseURL stands in for tools.base_url so http tools compile
// without a live endpoint.
const validateBaseURL = "http://localhost"

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Check workflow definitions without running them",
		Long: `Check workflow definitions without running them.

path may be a single .yaml, .yml or .json file or a directory. It defaults
to the configured workflows directory. Each definition is parsed, validated
and compiled.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.settings()
			logger, err := a.logger(cmd, s)
			if err != nil {
				return err
			}

			path := s.WorkflowsDir
			if len(args) == 1 {
				path = args[0]
			}
			defs, err := loadDefinitions(path)
			if err != nil {
				return err
			}

			deps := config.Deps{
				ToolBaseURL: orDefault(s.ToolsBaseURL, validateBaseURL),
				Logger:      logger,
			}
			var errs []error
			for _, def := range defs {
				if _, err := config.Build(def, deps); err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "OK %s (%d workers)\n", def.Name, len(def.Workers))
			}
			return errors.Join(errs...)
		},
	}
}

func loadDefinitions(path string) ([]*config.Definition, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return config.LoadDir(path)
	}
	def, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return []*config.Definition{def}, nil
}
