package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tellus/internal/config"
)

// validateSummary is the payload reported for a valid config.
type validateSummary struct {
	Name      string  `json:"name,omitempty"`
	StartDate float64 `json:"start_date"`
	EndDate   float64 `json:"end_date"`
	Emissions int     `json:"emissions"`
	Set       int     `json:"set"`
	Outputs   int     `json:"outputs"`
}

func (s validateSummary) String() string {
	return fmt.Sprintf("config valid: %g..%g, %d emissions, %d assignments, %d outputs",
		s.StartDate, s.EndDate, s.Emissions, s.Set, s.Outputs)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a run configuration",
		Long: `Validate a YAML run configuration against the schema without
running anything. Exit code 2 indicates an invalid config.

Example:
  tellus validate scenario.yaml
  tellus validate scenario.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid config", err)
			}

			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return formatter.Success(validateSummary{
				Name:      cfg.Name,
				StartDate: cfg.StartDate,
				EndDate:   cfg.EndDate,
				Emissions: len(cfg.Emissions),
				Set:       len(cfg.Set),
				Outputs:   len(cfg.Outputs),
			})
		},
	}

	return cmd
}
