package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"pipeline-alerts/internal/storage"
)

// Show prints recent persisted anomalies.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	pool, err := a.openPool(ctx)
	if err != nil {
		return err
	}
	store := storage.NewStore(pool)
	defer store.Close()

	records, err := store.ListRecentAnomalies(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no anomalies found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Detected (UTC)\tCategory\tType\tSeverity\tMessage")

	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			rec.DetectedAt.UTC().Format(time.RFC3339),
			rec.Category,
			rec.Type,
			rec.Severity,
			sanitizeInline(rec.Message),
		)
	}

	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
