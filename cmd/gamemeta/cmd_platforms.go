package main

import (
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ryanm101/gamemeta/internal/platform"
)

func init() {
	platformsCmd.AddCommand(platformsResolveCmd, platformsListCmd)
	rootCmd.AddCommand(platformsCmd)
}

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "Inspect the platform label table.",
}

var platformsResolveCmd = &cobra.Command{
	Use:   "resolve <label>...",
	Short: "Resolve provider platform labels to canonical ids.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver, err := loadPlatforms()
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(args))
		for _, label := range args {
			h := resolver.Resolve(label)
			rows = append(rows, []string{label, h.SpecID(), h.Name(), strconv.FormatBool(h.IsCanonical())})
		}
		PrintTable([]string{"Label", "ID", "Name", "Canonical"}, rows)
		return nil
	},
}

var platformsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the built-in platform mapping.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mapping := platform.DefaultMapping()
		if cfg.PlatformsFile != "" {
			m, err := platform.LoadMappingFile(cfg.PlatformsFile)
			if err != nil {
				return err
			}
			for k, v := range m {
				mapping[k] = v
			}
		}
		labels := make([]string, 0, len(mapping))
		for label := range mapping {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		rows := make([][]string, 0, len(labels))
		for _, label := range labels {
			rows = append(rows, []string{label, mapping[label]})
		}
		PrintTable([]string{"Label", "ID"}, rows)
		return nil
	},
}
