package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// errChecksFailed is returned by doctor when any check fails.
var errChecksFailed = errors.New("one or more checks failed")

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the mirror binary, storage directories and database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ok := true

			if path, err := app.Mirror.LookPath(); err != nil {
				ok = report(out, "mirror", err) && ok
			} else {
				fmt.Fprintf(out, "[ok]   mirror: %s\n", path)
			}
			ok = report(out, "storage", app.Files.CheckWritable()) && ok
			ok = report(out, "database", app.Store.Ping(cmd.Context())) && ok

			if !ok {
				return errChecksFailed
			}
			return nil
		},
	}
}

func report(out io.Writer, name string, err error) bool {
	if err != nil {
		fmt.Fprintf(out, "[fail] %s: %v\n", name, err)
		return false
	}
	fmt.Fprintf(out, "[ok]   %s\n", name)
	return true
}
