package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var showMetrics bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show sample counts of a running server",
	Long:  `Query a running server for its health, stored sample counts and optionally pipeline metrics.`,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	addClientFlags(statsCmd)
	statsCmd.Flags().BoolVar(&showMetrics, "metrics", false, "also print pipeline counters and process stats")
}

func runStats(cmd *cobra.Command, args []string) error {
	client := newAPIClient(cmd)
	out := cmd.OutOrStdout()

	health, err := client.Health(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to query health: %w", err)
	}

	fmt.Fprintln(out, strings.Repeat("=", 40))
	fmt.Fprintf(out, "Status:        %s\n", health.Status)
	if !health.Healthy() {
		fmt.Fprintf(out, "Message:       %s\n", health.Message)
	} else {
		fmt.Fprintf(out, "RS485 samples: %d\n", health.RS485Count)
		fmt.Fprintf(out, "ADXL batches:  %d\n", health.ADXLCount)
	}
	fmt.Fprintf(out, "Timestamp:     %s\n", health.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(out, strings.Repeat("=", 40))

	if !showMetrics {
		return nil
	}

	snapshot, err := client.Metrics(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to query metrics: %w", err)
	}

	names := make([]string, 0, len(snapshot.Counters))
	for name := range snapshot.Counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "%-30s %.0f\n", name, snapshot.Counters[name])
	}
	fmt.Fprintf(out, "%-30s %.1f MiB\n", "rss", float64(snapshot.Process.RSSBytes)/(1<<20))
	fmt.Fprintf(out, "%-30s %.1f%%\n", "cpu", snapshot.Process.CPUPercent)
	return nil
}
