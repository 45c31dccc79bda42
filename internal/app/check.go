package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
)

// Check performs one collection sweep across all categories, evaluates the
// combined snapshot set, and prints any anomalies.
func (a *App) Check(ctx context.Context) error {
	svc, cleanup, err := a.buildService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	detected := svc.RunOnce(ctx)
	if len(detected) == 0 {
		fmt.Fprintln(os.Stdout, "no anomalies detected")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Type\tSeverity\tMessage")
	for _, anom := range detected {
		fmt.Fprintf(writer, "%s\t%s\t%s\n", anom.Type, anom.Severity, anom.Message)
	}
	return writer.Flush()
}
