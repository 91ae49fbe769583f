package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sguter90/sensormaestro/pkg/api"
	"github.com/sguter90/sensormaestro/pkg/export"
	"github.com/sguter90/sensormaestro/pkg/models"
	"github.com/spf13/cobra"
)

var (
	exportStart  string
	exportEnd    string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export <rs485|adxl> <csv|xlsx>",
	Short: "Download an export from a running server",
	Long:  `Download all samples of one kind within an optional time range as a CSV or XLSX file.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	addClientFlags(exportCmd)
	exportCmd.Flags().StringVar(&exportStart, "start", "", "range start (RFC3339 or YYYY-MM-DD HH:MM:SS)")
	exportCmd.Flags().StringVar(&exportEnd, "end", "", "range end (RFC3339 or YYYY-MM-DD HH:MM:SS)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default <kind>.<format>)")
}

func runExport(cmd *cobra.Command, args []string) error {
	kind, err := export.ParseKind(args[0])
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(args[1])
	if err != nil {
		return err
	}

	params, err := exportRange(exportStart, exportEnd)
	if err != nil {
		return err
	}

	output := exportOutput
	if output == "" {
		output = export.Filename(kind, format)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}

	n, err := newAPIClient(cmd).Export(cmd.Context(), string(kind), string(format), params, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(output)
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d bytes to %s\n", n, output)
	return nil
}

func exportRange(start, end string) (api.RangeParams, error) {
	var params api.RangeParams
	parse := func(name, value string) (*time.Time, error) {
		if value == "" {
			return nil, nil
		}
		t, err := models.ParseTimestamp(value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %s", name, value)
		}
		return &t, nil
	}

	var err error
	if params.Start, err = parse("start", start); err != nil {
		return params, err
	}
	if params.End, err = parse("end", end); err != nil {
		return params, err
	}
	return params, nil
}
