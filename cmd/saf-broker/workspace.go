package main

import (
	"fmt"
	"os"

	"github.com/secure-app-framework/saf-broker/infrastructure/grantstore"
	"github.com/secure-app-framework/saf-broker/infrastructure/prompter"
	"github.com/secure-app-framework/saf-broker/infrastructure/workspace"
	"github.com/spf13/cobra"
)

func newWorkspaceCmd() *cobra.Command {
	var storePath string

	newGranter := func(opts ...workspace.GranterOption) *workspace.DirectoryGranter {
		var storeOpts []grantstore.FileStoreOption
		if storePath != "" {
			storeOpts = append(storeOpts, grantstore.WithPath(storePath))
		}
		return workspace.NewDirectoryGranter(grantstore.NewFileStore(storeOpts...), opts...)
	}

	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Grant and restore workspace directories",
	}
	cmd.PersistentFlags().StringVar(&storePath, "store", "", "Grant store file (default ~/.saf-broker/workspaces.yaml)")

	var id string
	var confirm bool
	grant := &cobra.Command{
		Use:   "grant <dir>",
		Short: "Grant a directory and print its restore token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []workspace.GranterOption
			if confirm {
				p := prompter.NewCliPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
				if !p.IsInteractive() {
					return prompter.NonInteractiveError(args[0])
				}
				opts = append(opts, workspace.WithPrompter(p))
			}

			g, err := newGranter(opts...).Grant(id, args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "granted %s (%s)\ntoken: %s\n", g.ID, g.Path, g.Token)
			return nil
		},
	}
	grant.Flags().StringVar(&id, "id", "", "Grant ID (generated when empty)")
	grant.Flags().BoolVar(&confirm, "confirm", false, "Ask for confirmation on the terminal")

	restore := &cobra.Command{
		Use:   "restore <token>",
		Short: "Resolve a token to its workspace directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := newGranter().Restore(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), g.Path)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List persisted workspace grants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			grants, err := newGranter().List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(grants) == 0 {
				_, _ = fmt.Fprintln(out, "no workspace grants")
				return nil
			}
			for _, g := range grants {
				_, statErr := os.Stat(g.Path)
				state := "ok"
				if statErr != nil {
					state = "missing"
				}
				_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", g.ID, g.Path, state)
			}
			return nil
		},
	}

	cmd.AddCommand(grant, restore, list)
	return cmd
}
