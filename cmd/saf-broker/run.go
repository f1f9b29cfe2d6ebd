package main

import (
	"errors"
	"fmt"

	"github.com/secure-app-framework/saf-broker/application/broker"
	"github.com/secure-app-framework/saf-broker/infrastructure/grantstore"
	"github.com/secure-app-framework/saf-broker/infrastructure/workspace"
	"github.com/spf13/cobra"
)

func newRunCmd(g *globalFlags) *cobra.Command {
	var component, token, storePath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a component's start export",
		Long: `Load a WebAssembly component, record broker.start in the audit log and
call the component's start export. The string it returns is printed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if component == "" {
				return errors.New("--component is required")
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if token != "" {
				var storeOpts []grantstore.FileStoreOption
				if storePath != "" {
					storeOpts = append(storeOpts, grantstore.WithPath(storePath))
				}
				grant, err := workspace.NewDirectoryGranter(grantstore.NewFileStore(storeOpts...)).Restore(token)
				if err != nil {
					return err
				}
				cfg.Workspace = grant.Path
			}

			logger := newLogger(cfg.Log, cmd.ErrOrStderr())
			b, err := broker.New(cfg, broker.WithLogger(logger))
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			ctx := cmd.Context()
			if err := b.Start(ctx); err != nil {
				return err
			}
			out, err := b.RunComponentFile(ctx, component)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&component, "component", "", "Path to the component .wasm file")
	cmd.Flags().StringVar(&token, "token", "", "Workspace token from 'workspace grant' (overrides --workspace)")
	cmd.Flags().StringVar(&storePath, "store", "", "Grant store file (default ~/.saf-broker/workspaces.yaml)")
	return cmd
}

func newDemoCmd(g *globalFlags) *cobra.Command {
	var live bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "List the workspace root and fetch " + broker.DemoURL,
		Long: `Exercise the capability layer without a component: record broker.start,
list the workspace root and fetch the demo URL. The fetch is served from a
fixed route table unless --live is given. example.org is allowed when the
configuration allows no domains.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Workspace == "" {
				cfg.Workspace = "."
			}
			cfg.Network.Static = !live
			if len(cfg.Network.AllowedDomains) == 0 {
				cfg.Network.AllowedDomains = []string{"example.org"}
			}

			b, err := broker.New(cfg, broker.WithLogger(newLogger(cfg.Log, cmd.ErrOrStderr())))
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			report, err := b.Demo(cmd.Context())
			if err != nil {
				return err
			}

			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
			if report.ListErr != nil {
				_, _ = fmt.Fprintf(errOut, "list_dir error: %v\n", report.ListErr)
			} else {
				_, _ = fmt.Fprintf(out, "workspace: %s (%d entries)\n", report.Workspace, len(report.Entries))
			}
			if report.FetchErr != nil {
				_, _ = fmt.Fprintf(errOut, "fetch error: %v\n", report.FetchErr)
			} else {
				_, _ = fmt.Fprintf(out, "fetched example.org: %d bytes\n", report.FetchBytes)
			}
			_, _ = fmt.Fprintf(out, "audit: %s\n", b.AuditPath())
			return nil
		},
	}
	cmd.Flags().BoolVar(&live, "live", false, "Fetch over the network instead of the fixed demo routes")
	return cmd
}
