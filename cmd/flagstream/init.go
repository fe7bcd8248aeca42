package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/flagstream-dev/flagstream/internal/config"
	"github.com/flagstream-dev/flagstream/internal/errors"
)

func initCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a flagstream.json in the given directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			if config.Exists(dir) {
				return errors.Newf(errors.CategoryCLI,
					"%s already exists in %s", config.ConfigFileName, dir)
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return errors.Newf(errors.CategoryCLI, "create %s: %v", dir, err)
			}

			cfg := config.New()
			if name == "" {
				if abs, err := filepath.Abs(dir); err == nil {
					name = filepath.Base(abs)
				}
			}
			cfg.Name = name
			cfg.Flags = map[string]any{}

			path := filepath.Join(dir, config.ConfigFileName)
			if err := cfg.SaveTo(path); err != nil {
				return err
			}

			success("created %s", path)
			info("add initial flags under the \"flags\" key, then run 'flagstream serve'")
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Project name (default: directory name)")

	return cmd
}
