package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ibmruntimes/aotverify/internal/cache"
	"github.com/ibmruntimes/aotverify/internal/harness"
	"github.com/ibmruntimes/aotverify/internal/rtenv"
	"github.com/ibmruntimes/aotverify/internal/svm"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	DBPath string
}

// verifyReport is the payload of the verify command.
type verifyReport struct {
	ArtifactID string `json:"artifact_id"`
	Compilee   string `json:"compilee"`
	Outcome    string `json:"outcome"`
	Records    int    `json:"records"`
	Error      string `json:"error,omitempty"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <artifact-id> <fixture-file>",
		Short: "Replay an artifact's records against a runtime fixture",
		Long: `Verify reads an artifact from the cache and replays its validation
records against the given fixture. The replay stops at the first record
whose re-derivation disagrees with the recorded answer.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "aotverify.db", "artifact cache path")

	return cmd
}

func runVerify(opts *VerifyOptions, artifactID, fixturePath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	store, err := cache.Open(opts.DBPath)
	if err != nil {
		_ = formatter.Error(ErrCodeCacheFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "opening cache", err)
	}
	defer store.Close()

	art, err := store.ReadArtifact(cmd.Context(), artifactID)
	if err != nil {
		code := ErrCodeCacheFailed
		if errors.Is(err, cache.ErrNotFound) {
			code = ErrCodeNotFound
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "reading artifact", err)
	}

	snap, _, err := LoadFixtureSnapshot(fixturePath, rtenv.NewChainTable())
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "loading fixture", err)
	}

	compilee := art.Key()
	formatter.VerboseLog("Replaying %d record(s) for %s", len(art.Records), compilee)

	outcome, verr := replayArtifact(snap, compilee, art)

	report := verifyReport{
		ArtifactID: art.ID,
		Compilee:   compilee,
		Outcome:    outcome,
		Records:    len(art.Records),
	}
	if verr != nil {
		report.Error = verr.Error()
	}

	if formatter.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else if outcome == harness.OutcomeValid {
		fmt.Fprintf(formatter.Writer, "✓ %s: %d record(s) replayed against %s\n",
			report.ArtifactID, report.Records, fixturePath)
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %s failed verification: %s\n", report.ArtifactID, outcome)
		fmt.Fprintf(formatter.Writer, "  %v\n", verr)
	}

	if outcome != harness.OutcomeValid {
		return NewExitError(ExitFailure, fmt.Sprintf("verification failed: %s", outcome))
	}
	return nil
}

// replayArtifact runs a load session over an artifact's records and
// classifies the result.
func replayArtifact(snap *rtenv.Snapshot, compilee string, art cache.Artifact) (string, error) {
	m, err := snap.MustMethod(compilee)
	if err != nil {
		return harness.OutcomeMissingSymbol, err
	}
	sess, err := svm.NewLoadSession(snap, m, svm.Config{})
	if err != nil {
		return harness.ClassifyOutcome(err), err
	}
	err = sess.ValidateAll(art.Records)
	return harness.ClassifyOutcome(err), err
}
