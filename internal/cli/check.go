package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ibmruntimes/aotverify/internal/rtenv"
)

// checkReport is the per-file payload of the check command.
type checkReport struct {
	Path    string `json:"path"`
	Classes int    `json:"classes"`
	Loaders int    `json:"loaders"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <fixture-file>...",
		Short: "Parse and build runtime fixture files",
		Long: `Check parses each fixture file and builds it into a snapshot, failing
on dangling references, malformed method names and unknown fields.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runCheck(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	reports := make([]checkReport, 0, len(paths))
	for _, path := range paths {
		_, fx, err := LoadFixtureSnapshot(path, rtenv.NewChainTable())
		if err != nil {
			code := ErrCodeBadInput
			if os.IsNotExist(err) {
				code = ErrCodeNotFound
			}
			_ = formatter.Error(code, err.Error(), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("checking %s", path), err)
		}
		reports = append(reports, checkReport{
			Path:    path,
			Classes: len(fx.Classes),
			Loaders: len(fx.Loaders),
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(reports)
	}

	for _, r := range reports {
		fmt.Fprintf(formatter.Writer, "✓ %s: %d class(es), %d loader(s)\n", r.Path, r.Classes, r.Loaders)
	}
	return nil
}
