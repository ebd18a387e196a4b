package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <link>",
		Short: "Capture one link into the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			page, err := app.Service.Save(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Link saved: %s\n", args[0])
			fmt.Fprintf(out, "  id:    %d\n", page.ID)
			fmt.Fprintf(out, "  url:   %s\n", page.URL)
			fmt.Fprintf(out, "  title: %s\n", page.Title)
			fmt.Fprintf(out, "  path:  %s\n", page.FilePath)
			return nil
		},
	}
}
