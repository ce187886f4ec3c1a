package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ibmruntimes/aotverify/internal/cache"
	"github.com/ibmruntimes/aotverify/internal/harness"
)

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	DBPath string
}

// recordReport is the success payload of the record command.
type recordReport struct {
	ArtifactID string `json:"artifact_id"`
	Compilee   string `json:"compilee"`
	Digest     string `json:"digest"`
	Records    int    `json:"records"`
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record <scenario-file>",
		Short: "Run a scenario's compile script and store the record stream",
		Long: `Record runs the compile script of a scenario against its fixture,
serializes the resulting validation records, and stores them as an
artifact in the cache. The artifact can later be replayed with verify.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "aotverify.db", "artifact cache path")

	return cmd
}

func runRecord(opts *RecordOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	sc, err := LoadScenarioFile(path)
	if err != nil {
		code := ErrCodeBadInput
		if os.IsNotExist(err) {
			code = ErrCodeNotFound
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "loading scenario", err)
	}

	formatter.VerboseLog("Compiling scenario %s (%d step(s))", sc.Name, len(sc.Compile))

	result, err := harness.Compile(sc)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "running compile script", err)
	}
	if result.Outcome != harness.OutcomeValid {
		msg := fmt.Sprintf("compile script failed (%s): %v", result.Outcome, result.Err)
		_ = formatter.Error(ErrCodeReplay, msg, nil)
		return NewExitError(ExitFailure, msg)
	}

	className, methodName, methodSig, err := splitCompilee(sc.Compilee)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "parsing compilee", err)
	}

	store, err := cache.Open(opts.DBPath)
	if err != nil {
		_ = formatter.Error(ErrCodeCacheFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "opening cache", err)
	}
	defer store.Close()

	art, err := store.WriteArtifact(cmd.Context(), className, methodName, methodSig, result.Records)
	if err != nil {
		_ = formatter.Error(ErrCodeCacheFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "writing artifact", err)
	}

	report := recordReport{
		ArtifactID: art.ID,
		Compilee:   sc.Compilee,
		Digest:     art.Digest,
		Records:    len(art.Records),
	}

	if formatter.Format == "json" {
		return formatter.Success(report)
	}

	fmt.Fprintf(formatter.Writer, "✓ Recorded %d record(s) for %s\n", report.Records, report.Compilee)
	fmt.Fprintf(formatter.Writer, "  artifact: %s\n", report.ArtifactID)
	fmt.Fprintf(formatter.Writer, "  digest:   %s\n", report.Digest)
	return nil
}

// splitCompilee parses "Class.name(sig)" into its parts. The class
// component may contain '/' and '$' but never '('.
func splitCompilee(qualified string) (className, methodName, methodSig string, err error) {
	paren := strings.IndexByte(qualified, '(')
	if paren < 0 {
		return "", "", "", fmt.Errorf("compilee %q: missing signature", qualified)
	}
	dot := strings.LastIndexByte(qualified[:paren], '.')
	if dot <= 0 || dot == paren-1 {
		return "", "", "", fmt.Errorf("compilee %q: want Class.name(sig)", qualified)
	}
	return qualified[:dot], qualified[dot+1 : paren], qualified[paren:], nil
}
