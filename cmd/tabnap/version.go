package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/tabnap/internal/version"
)

func newVersionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the tabnap build",
		Long:  "Show the tabnap release, the VCS revision it was built from and the notice target version.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeVersion(cmd.OutOrStdout(), version.Read(), short)
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print only the version")
	return cmd
}

func writeVersion(w io.Writer, info version.Info, short bool) error {
	if short {
		_, err := fmt.Fprintln(w, info.Version)
		return err
	}
	if _, err := fmt.Fprintf(w, "tabnap %s (%s)\n", info.Version, info.Module); err != nil {
		return err
	}
	if info.Revision != "" {
		revision := info.Revision
		if info.Dirty {
			revision += " (modified)"
		}
		if _, err := fmt.Fprintf(w, "revision: %s\n", revision); err != nil {
			return err
		}
	}
	if !info.Time.IsZero() {
		if _, err := fmt.Fprintf(w, "built: %s\n", info.Time.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "notice target: %s\n", version.Release())
	return err
}
