package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ryanm101/gamemeta/internal/merge"
	"github.com/ryanm101/gamemeta/internal/metadata"
	"github.com/ryanm101/gamemeta/internal/platform"
)

var addFlags struct {
	barcode   string
	names     []string
	platforms []string
	regions   []string
	released  string
}

func init() {
	recordsAddCmd.Flags().StringVar(&addFlags.barcode, "barcode", "", "UPC/EAN barcode of the release")
	recordsAddCmd.Flags().StringSliceVar(&addFlags.names, "alt-name", nil, "Alternate title (repeatable)")
	recordsAddCmd.Flags().StringSliceVar(&addFlags.platforms, "platform", nil, "Platform label (repeatable)")
	recordsAddCmd.Flags().StringSliceVar(&addFlags.regions, "region", nil, "Region label (repeatable)")
	recordsAddCmd.Flags().StringVar(&addFlags.released, "released", "", "Release date (YYYY, YYYY-MM or YYYY-MM-DD)")

	recordsCmd.AddCommand(recordsAddCmd, recordsListCmd, recordsShowCmd, recordsDeleteCmd)
	rootCmd.AddCommand(recordsCmd)
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Manage game records in the local store.",
}

var recordsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a record.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rec := &metadata.Record{
			Name:    strings.TrimSpace(args[0]),
			Barcode: strings.TrimSpace(addFlags.barcode),
			Regions: platform.NormalizeRegions(addFlags.regions),
		}
		if rec.Name != "" {
			rec.Names = append([]string{rec.Name}, addFlags.names...)
		}
		if addFlags.released != "" {
			rd, err := metadata.ParseReleaseDate(addFlags.released)
			if err != nil {
				return err
			}
			rec.ReleaseDate = rd
		}
		if len(addFlags.platforms) > 0 {
			resolver, err := loadPlatforms()
			if err != nil {
				return err
			}
			rec.Platforms = resolver.ResolveAll(addFlags.platforms)
		}

		st, err := openStore(ctx)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = st.Close() }()

		if err := st.AddRecord(ctx, rec); err != nil {
			return err
		}

		if outputCfg.JSON {
			PrintResult(map[string]string{"id": rec.ID, "name": rec.Name, "status": "created"})
			return nil
		}
		PrintInfo("Added %s (%s)\n", rec.Name, rec.ID)
		return nil
	},
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all records.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = st.Close() }()

		records, err := st.ListRecords(ctx)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			PrintInfo("No records. Add one with: gamemeta records add <name>\n")
			return nil
		}

		rows := make([][]string, 0, len(records))
		for _, rec := range records {
			rows = append(rows, []string{
				rec.ID,
				truncateString(rec.Name, 40),
				rec.Barcode,
				joinHandles(rec.Platforms),
				rec.ReleaseDate.String(),
			})
		}
		PrintTable([]string{"ID", "Name", "Barcode", "Platforms", "Released"}, rows)
		return nil
	},
}

var recordsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a record with its resolved properties.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = st.Close() }()

		rec, err := st.GetRecord(ctx, args[0])
		if err != nil {
			return err
		}

		var ids []string
		for _, set := range rec.Properties {
			ids = append(ids, set...)
		}
		names, err := st.PropertyNames(ctx, ids)
		if err != nil {
			return err
		}

		rows := [][]string{
			{"ID", rec.ID},
			{"Name", rec.Name},
			{"Names", strings.Join(rec.Names, ", ")},
			{"Barcode", rec.Barcode},
			{"Platforms", joinHandles(rec.Platforms)},
			{"Regions", strings.Join(rec.Regions, ", ")},
			{"Released", rec.ReleaseDate.String()},
			{"Cover", rec.CoverURL},
			{"Description", truncateString(rec.Description, 80)},
		}
		for _, slot := range merge.Slots() {
			set := rec.Properties[slot]
			if len(set) == 0 {
				continue
			}
			labels := make([]string, 0, len(set))
			for _, id := range set {
				if n, ok := names[id]; ok {
					labels = append(labels, n)
				} else {
					labels = append(labels, id)
				}
			}
			rows = append(rows, []string{slot.String(), strings.Join(labels, ", ")})
		}
		for _, l := range rec.Links {
			rows = append(rows, []string{"Link", strings.TrimSpace(l.Name + " " + l.URL)})
		}

		PrintTable([]string{"Field", "Value"}, rows)
		return nil
	},
}

var recordsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a record.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = st.Close() }()

		if err := st.DeleteRecord(ctx, args[0]); err != nil {
			return err
		}
		PrintInfo("Deleted %s\n", args[0])
		return nil
	},
}

func joinHandles(handles []platform.Handle) string {
	parts := make([]string, 0, len(handles))
	for _, h := range handles {
		parts = append(parts, h.String())
	}
	return strings.Join(parts, ", ")
}
