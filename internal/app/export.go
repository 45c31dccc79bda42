package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"pipeline-alerts/internal/anomaly"
	"pipeline-alerts/internal/storage"
)

// Export renders persisted anomalies as CSV and/or a PNG chart of hourly
// counts per severity.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	pool, err := a.openPool(ctx)
	if err != nil {
		return err
	}
	store := storage.NewStore(pool)
	defer store.Close()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-7 * 24 * time.Hour)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	records, err := store.ListAnomaliesBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.Logger.Info().Msg("no anomalies found for export window")
		return nil
	}

	downsampled := downsampleRecords(records, opts.MaxPoints)
	a.Logger.Info().Int("total", len(records)).Int("exported", len(downsampled)).Msg("exporting anomalies")

	if opts.CSVPath != "" {
		if err := writeAnomaliesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeAnomaliesPNG(opts.PNGPath, records, from, to); err != nil {
			return err
		}
	}

	return nil
}

func downsampleRecords(records []storage.AnomalyRecord, max int) []storage.AnomalyRecord {
	if max <= 0 || len(records) <= max {
		return records
	}

	result := make([]storage.AnomalyRecord, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}

func writeAnomaliesCSV(path string, records []storage.AnomalyRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"detected_at", "category", "type", "severity", "message"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		record := []string{
			rec.DetectedAt.UTC().Format(time.RFC3339),
			rec.Category,
			rec.Type,
			string(rec.Severity),
			rec.Message,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeAnomaliesPNG(path string, records []storage.AnomalyRecord, from, to time.Time) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	severities := []anomaly.Severity{
		anomaly.SeverityLow,
		anomaly.SeverityMedium,
		anomaly.SeverityHigh,
		anomaly.SeverityCritical,
	}

	start := from.Truncate(time.Hour)
	buckets := int(to.Sub(start)/time.Hour) + 1
	x := make([]time.Time, buckets)
	for i := range x {
		x[i] = start.Add(time.Duration(i) * time.Hour)
	}

	counts := make(map[anomaly.Severity][]float64, len(severities))
	for _, sev := range severities {
		counts[sev] = make([]float64, buckets)
	}
	for _, rec := range records {
		idx := int(rec.DetectedAt.UTC().Sub(start) / time.Hour)
		if idx < 0 || idx >= buckets {
			continue
		}
		if series, ok := counts[rec.Severity]; ok {
			series[idx]++
		}
	}

	countFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Anomalies per hour",
			ValueFormatter: countFormatter,
		},
	}
	for _, sev := range severities {
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name:    string(sev),
			XValues: x,
			YValues: counts[sev],
		})
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
