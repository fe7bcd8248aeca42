package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/flagstream-dev/flagstream/internal/errors"
)

func importCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the flag mapping from a JSON file",
		Long: `Replace the flag mapping wholesale from a JSON file.

The file holds a flat JSON object of flag keys to values, as
produced by 'flagstream export'. Flags absent from the file are
removed.

Examples:
  flagstream export -o flags.json
  flagstream import flags.json --addr=staging:8099`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Newf(errors.CategoryCLI, "read %s: %v", args[0], err)
			}

			var mapping map[string]any
			if err := json.Unmarshal(data, &mapping); err != nil {
				return errors.New("E401").
					WithDetail(args[0] + " is not a flat JSON object of flags").
					Wrap(err)
			}

			snap, err := newServiceClient(addr).replace(mapping)
			if err != nil {
				return err
			}

			success("imported %d flags (version %d)", len(snap.Flags), snap.Version)
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Flag service address")

	return cmd
}
