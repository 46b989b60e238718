package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"inferd/internal/model"
)

func newInspectCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Load a model and print its descriptor as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			if cfg.Model == "" {
				return errors.New("no model given (--model, config model or INFERD_MODEL)")
			}
			log, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			backend, err := model.OpenBackend(cfg.Backend, model.BackendOptions{ORTLibraryPath: cfg.ORTLibraryPath})
			if err != nil {
				return err
			}
			pool := model.NewPool(backend, model.DefaultSource(&log), model.WithLogger(&log), model.WithShowModel(cfg.ShowModel))
			defer pool.Close()
			primary, err := pool.LoadPrimary(cmd.Context(), cfg.Model)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(primary.Descriptor())
		},
	}
	modelFlags(cmd, opts)
	return cmd
}
