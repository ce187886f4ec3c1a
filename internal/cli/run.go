package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ibmruntimes/aotverify/internal/harness"
)

// runReport is the per-scenario payload of the run command.
type runReport struct {
	Scenario string `json:"scenario"`
	Outcome  string `json:"outcome"`
	Expected string `json:"expected"`
	Records  int    `json:"records"`
	Pass     bool   `json:"pass"`
	Error    string `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario-file>...",
		Short: "Run scenarios end to end and check their expected outcomes",
		Long: `Run executes each scenario: compile script, serialization round trip,
replay against the load fixture. A scenario passes when the replay
outcome matches its expectation.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runScenarios(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	reports := make([]runReport, 0, len(paths))
	failed := 0
	for _, path := range paths {
		sc, err := LoadScenarioFile(path)
		if err != nil {
			code := ErrCodeBadInput
			if os.IsNotExist(err) {
				code = ErrCodeNotFound
			}
			_ = formatter.Error(code, err.Error(), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("loading %s", path), err)
		}

		result, err := harness.Run(sc)
		if err != nil {
			_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("running %s", sc.Name), err)
		}

		report := runReport{
			Scenario: sc.Name,
			Outcome:  result.Outcome,
			Expected: sc.Expect.Outcome,
			Records:  len(result.Records),
			Pass:     result.Outcome == sc.Expect.Outcome,
		}
		if sc.Expect.Records != nil && len(result.Records) != *sc.Expect.Records {
			report.Pass = false
		}
		if result.Err != nil {
			report.Error = result.Err.Error()
		}
		if !report.Pass {
			failed++
		}
		reports = append(reports, report)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			if r.Pass {
				fmt.Fprintf(formatter.Writer, "✓ %s: %s (%d record(s))\n", r.Scenario, r.Outcome, r.Records)
			} else {
				fmt.Fprintf(formatter.Writer, "✗ %s: got %s, expected %s\n", r.Scenario, r.Outcome, r.Expected)
				if r.Error != "" {
					fmt.Fprintf(formatter.Writer, "  %s\n", r.Error)
				}
			}
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", failed, len(reports)))
	}
	return nil
}
