package handlers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sharkwire/internal/core"
	"sharkwire/internal/persistence"
)

// NewSourcesCmd creates the sources command
func NewSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage ingest sources",
	}

	cmd.AddCommand(newSourcesImportCmd())
	cmd.AddCommand(newSourcesListCmd())

	return cmd
}

func newSourcesImportCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <csv-file>",
		Short: "Import sources from a CSV file",
		Long: `Import sources from a CSV file with a header row. Recognized
columns:

  name           Display name (required, must be unique)
  url            Main site URL (required)
  category       official, press, or other (default other)
  tier           1, 2, or 3; maps to fetch priority 10/50/100
  ingest_method  rss, html, api, reddit, or twitter (default rss)
  feed_url       RSS feed URL, when the method needs one
  notes          Free text, stored in source metadata

Imported sources start approved. Rows whose name already exists are
skipped so the import is safe to re-run.

Examples:
  sharkwire sources import initial_sources.csv
  sharkwire sources import initial_sources.csv --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSourcesImport(cmd.Context(), args[0], dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print what would be imported without saving")

	return cmd
}

func newSourcesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List approved sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := getDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			sources, err := db.Sources().ListApproved(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list sources: %w", err)
			}
			for _, s := range sources {
				fmt.Printf("%4d  %-10s %-8s prio=%-4d errors=%-3d %s\n",
					s.ID, s.Category, s.IngestMethod, s.Priority, s.FetchErrorCount, s.Name)
			}
			fmt.Printf("%d approved sources\n", len(sources))
			return nil
		},
	}
}

func runSourcesImport(ctx context.Context, path string, dryRun bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open CSV: %w", err)
	}
	defer f.Close()

	db, err := getDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["name"]; !ok {
		return errors.New("CSV has no name column")
	}

	imported, skipped := 0, 0
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}

		field := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		name := field("name")
		url := field("url")
		if name == "" || url == "" {
			fmt.Printf("Row %d: skipping, missing name or URL\n", row)
			skipped++
			continue
		}

		if _, err := db.Sources().GetByName(ctx, name); err == nil {
			fmt.Printf("Row %d: skipping %q, already exists\n", row, name)
			skipped++
			continue
		} else if !errors.Is(err, persistence.ErrNotFound) {
			return fmt.Errorf("row %d: %w", row, err)
		}

		source := &core.Source{
			Name:         name,
			Category:     parseSourceCategory(field("category")),
			IngestMethod: parseIngestMethod(field("ingest_method")),
			BaseURL:      url,
			FeedURL:      field("feed_url"),
			Status:       core.SourceStatusApproved,
			Priority:     tierPriority(field("tier")),
		}
		if notes := field("notes"); notes != "" {
			source.Metadata = map[string]any{"notes": notes}
		}

		if dryRun {
			fmt.Printf("Row %d: would import %q (%s via %s, priority %d)\n",
				row, name, source.Category, source.IngestMethod, source.Priority)
			imported++
			continue
		}
		if err := db.Sources().Create(ctx, source); err != nil {
			return fmt.Errorf("row %d: failed to create %q: %w", row, name, err)
		}
		fmt.Printf("Row %d: imported %q (ID %d)\n", row, name, source.ID)
		imported++
	}

	fmt.Printf("Done: %d imported, %d skipped\n", imported, skipped)
	return nil
}

func parseSourceCategory(s string) core.SourceCategory {
	switch strings.ToLower(s) {
	case "official":
		return core.SourceCategoryOfficial
	case "press":
		return core.SourceCategoryPress
	default:
		return core.SourceCategoryOther
	}
}

func parseIngestMethod(s string) core.IngestMethod {
	switch strings.ToLower(s) {
	case "html":
		return core.IngestMethodHTML
	case "api":
		return core.IngestMethodAPI
	case "reddit":
		return core.IngestMethodReddit
	case "twitter":
		return core.IngestMethodTwitter
	default:
		return core.IngestMethodRSS
	}
}

// tierPriority maps the tier column to a fetch priority. Lower tiers fetch
// first.
func tierPriority(s string) int {
	tier, err := strconv.Atoi(s)
	if err != nil {
		return 100
	}
	switch tier {
	case 1:
		return 10
	case 2:
		return 50
	default:
		return 100
	}
}
