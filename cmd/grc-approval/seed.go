package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/grc-approval/internal/container"
	"github.com/garyjia/grc-approval/internal/infrastructure/seed"
)

func newSeedCommand(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load roles, role assignments and workflow definitions from YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			bundle, err := seed.LoadFile(file)
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			cc := cfg.ToContainerConfig()
			db, err := container.ProvideDatabase(ctx, &cc.Database, true, logger)
			if err != nil {
				return err
			}
			defer db.DB.Close()

			repos, err := container.ProvideRepositories(db.DB, logger)
			if err != nil {
				return err
			}
			services, err := container.ProvideServices(&container.ServiceDeps{
				Repos:     repos,
				TxManager: db.TransactionMgr,
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			res, err := seed.Apply(ctx, bundle, services.RBAC, services.Definitions, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "roles=%d assignments=%d definitions=%d skipped=%d\n",
				res.Roles, res.Assignments, res.Definitions, res.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "seed YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
