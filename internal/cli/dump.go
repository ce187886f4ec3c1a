package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ibmruntimes/aotverify/internal/cache"
	"github.com/ibmruntimes/aotverify/internal/facts"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	DBPath string
}

// dumpReport is the payload of the dump command.
type dumpReport struct {
	ArtifactID string            `json:"artifact_id"`
	Compilee   string            `json:"compilee"`
	Digest     string            `json:"digest"`
	CreatedAt  string            `json:"created_at"`
	Records    []json.RawMessage `json:"records"`
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "dump <artifact-id>",
		Short:         "Print an artifact's validation record sequence",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "aotverify.db", "artifact cache path")

	return cmd
}

func runDump(opts *DumpOptions, artifactID string, cmd *cobra.Command) error {
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

	payloads := make([]json.RawMessage, 0, len(art.Records))
	for _, w := range art.Records {
		b, err := facts.EncodeWire(w)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "encoding record", err)
		}
		payloads = append(payloads, b)
	}

	compilee := art.Key()

	if formatter.Format == "json" {
		return formatter.Success(dumpReport{
			ArtifactID: art.ID,
			Compilee:   compilee,
			Digest:     art.Digest,
			CreatedAt:  art.CreatedAt.Format(time.RFC3339),
			Records:    payloads,
		})
	}

	fmt.Fprintf(formatter.Writer, "artifact %s\n", art.ID)
	fmt.Fprintf(formatter.Writer, "  compilee: %s\n", compilee)
	fmt.Fprintf(formatter.Writer, "  digest:   %s\n", art.Digest)
	fmt.Fprintf(formatter.Writer, "  records:  %d\n\n", len(art.Records))
	for i, w := range art.Records {
		fmt.Fprintf(formatter.Writer, "%4d  %-40s %s\n", i, w.WireKind(), payloads[i])
	}
	return nil
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	DBPath string
}

// listEntry is one artifact row in the list payload.
type listEntry struct {
	ArtifactID string `json:"artifact_id"`
	Compilee   string `json:"compilee"`
	Records    int    `json:"records"`
	CreatedAt  string `json:"created_at"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List artifacts in the cache",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "aotverify.db", "artifact cache path")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
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

	arts, err := store.ListArtifacts(cmd.Context())
	if err != nil {
		_ = formatter.Error(ErrCodeCacheFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "listing artifacts", err)
	}

	entries := make([]listEntry, 0, len(arts))
	for _, a := range arts {
		entries = append(entries, listEntry{
			ArtifactID: a.ID,
			Compilee:   a.Key(),
			Records:    a.RecordCount,
			CreatedAt:  a.CreatedAt.Format(time.RFC3339),
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "no artifacts")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(formatter.Writer, "%s  %-40s %4d record(s)  %s\n",
			e.ArtifactID, e.Compilee, e.Records, e.CreatedAt)
	}
	return nil
}
