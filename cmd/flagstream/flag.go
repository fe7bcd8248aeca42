package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/flagstream-dev/flagstream/internal/errors"
)

func getCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a flag value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flag, err := newServiceClient(addr).get(args[0])
			if err != nil {
				return err
			}

			data, err := json.Marshal(flag.Value)
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Flag service address")

	return cmd
}

func setCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a flag value",
		Long: `Set a flag value.

The value is parsed as JSON, so booleans, numbers, strings, and
objects all work. Bare words that are not valid JSON are treated
as strings.

Examples:
  flagstream set checkout-v2 true
  flagstream set rollout-pct 25
  flagstream set greeting '"hello"'
  flagstream set banner yes`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, raw := args[0], args[1]

			var value any
			if err := json.Unmarshal([]byte(raw), &value); err != nil {
				// Bare words like "yes" or "off" are flag strings.
				value = raw
			}

			flag, err := newServiceClient(addr).set(key, value)
			if err != nil {
				return err
			}

			success("%s = %v (version %d)", flag.Key, flag.Value, flag.Version)
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Flag service address")

	return cmd
}

func deleteCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newServiceClient(addr).delete(args[0]); err != nil {
				return err
			}
			success("deleted %s", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Flag service address")

	return cmd
}

func listCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := newServiceClient(addr).list()
			if err != nil {
				return err
			}

			if len(snap.Flags) == 0 {
				info("no flags set (version %d)", snap.Version)
				return nil
			}

			keys := make([]string, 0, len(snap.Flags))
			for k := range snap.Flags {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			info("version %d", snap.Version)
			for _, k := range keys {
				data, err := json.Marshal(snap.Flags[k])
				if err != nil {
					return err
				}
				fmt.Printf("  %-30s %s\n", k, string(data))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Flag service address")

	return cmd
}

func exportCmd() *cobra.Command {
	var (
		addr   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the flag mapping as JSON",
		Long: `Export the full flag mapping as JSON.

The output can be pasted into the flags section of flagstream.json
or replayed against another service with 'flagstream import'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := newServiceClient(addr).list()
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(snap.Flags, "", "  ")
			if err != nil {
				return err
			}
			data = append(data, '\n')

			if output == "" {
				fmt.Print(string(data))
				return nil
			}

			if err := os.WriteFile(output, data, 0644); err != nil {
				return errors.Newf(errors.CategoryCLI, "write %s: %v", output, err)
			}
			success("exported %d flags to %s", len(snap.Flags), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Flag service address")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")

	return cmd
}
