package main

import (
	"fmt"
	"strings"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"
)

func newVersionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "List the versions available in the asset store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			ids, err := store.Versions()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <version>",
		Short: "Describe a version manifest without exporting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			m, err := store.LoadManifest(args[0])
			if err != nil {
				return err
			}

			var b strings.Builder
			fmt.Fprintf(&b, "version:          %s\n", m.Version)
			fmt.Fprintf(&b, "digest:           %s\n", m.Digest)
			fmt.Fprintf(&b, "entries:          %d\n", m.Len())
			fmt.Fprintf(&b, "malformed:        %d\n", len(m.Invalid))
			fmt.Fprintf(&b, "declared size:    %s\n", units.HumanSize(float64(m.TotalSize())))
			fmt.Fprintf(&b, "virtual:          %t\n", m.Virtual)
			fmt.Fprintf(&b, "map_to_resources: %t\n", m.MapToResources)
			_, err = fmt.Fprint(cmd.OutOrStdout(), b.String())
			return err
		},
	}
}
