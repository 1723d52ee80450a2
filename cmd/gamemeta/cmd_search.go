package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ryanm101/gamemeta/internal/match"
	"github.com/ryanm101/gamemeta/internal/metadata"
)

var searchFlags struct {
	source  string
	barcode bool
	details bool
}

func init() {
	searchCmd.Flags().StringVar(&searchFlags.source, "source", "", "Metadata source ("+strings.Join(metadata.Adapters(), ", ")+")")
	searchCmd.Flags().BoolVar(&searchFlags.barcode, "barcode", false, "Treat the query as a UPC/EAN barcode")
	searchCmd.Flags().BoolVar(&searchFlags.details, "details", false, "Fetch details for the best candidate")
	_ = searchCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search a source and show ranked candidates.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		query := strings.TrimSpace(strings.Join(args, " "))

		adapter, err := openSource(searchFlags.source)
		if err != nil {
			return err
		}

		var (
			results []metadata.RawSearchResult
			mode    = match.ModeFuzzy
		)
		if searchFlags.barcode {
			results, err = adapter.SearchByBarcode(ctx, query)
			mode = match.ModeExact
		} else {
			results, err = adapter.SearchByQuery(ctx, query)
		}
		if err != nil {
			return fmt.Errorf("search %s: %w", adapter.Name(), err)
		}

		engine := match.New(match.Options{SimilarityThreshold: cfg.GetSimilarityThreshold()})
		ranked := engine.Rank(query, results, mode)
		if len(ranked) == 0 {
			PrintInfo("No candidates for %q.\n", query)
			return nil
		}

		rows := make([][]string, 0, len(ranked))
		for i, r := range ranked {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				r.Tier.String(),
				strconv.FormatFloat(r.Score, 'f', 2, 64),
				truncateString(r.Result.Name, 50),
				truncateString(strings.Join(r.Result.Platforms, ", "), 40),
				r.Result.ReleaseDate.String(),
				r.Result.ProviderID,
			})
		}
		PrintTable([]string{"#", "Tier", "Score", "Name", "Platforms", "Released", "ID"}, rows)

		if !searchFlags.details {
			return nil
		}
		details, err := adapter.GetDetails(ctx, ranked[0].Result)
		if err != nil {
			return fmt.Errorf("details %s: %w", ranked[0].Result.Name, err)
		}
		return printDetails(details)
	},
}

func printDetails(d *metadata.GameDetails) error {
	if outputCfg.JSON {
		PrintResult(d)
		return nil
	}
	rows := [][]string{
		{"ID", d.ID},
		{"Names", strings.Join(d.Names, ", ")},
		{"Platforms", joinHandles(d.Platforms)},
		{"Regions", strings.Join(d.Regions, ", ")},
		{"Developers", strings.Join(d.Developers, ", ")},
		{"Publishers", strings.Join(d.Publishers, ", ")},
		{"Genres", strings.Join(d.Genres, ", ")},
		{"Tags", strings.Join(d.Tags, ", ")},
		{"Features", strings.Join(d.Features, ", ")},
		{"Series", strings.Join(d.Series, ", ")},
		{"Released", d.ReleaseDate.String()},
		{"Cover", d.CoverURL},
		{"Description", truncateString(d.Description, 80)},
	}
	for _, l := range d.Links {
		rows = append(rows, []string{"Link", strings.TrimSpace(l.Name + " " + l.URL)})
	}
	PrintTable([]string{"Field", "Value"}, rows)
	return nil
}
