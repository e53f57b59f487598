package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hoursboard/internal/chart"
	"hoursboard/internal/core"
	"hoursboard/internal/loader"
	"hoursboard/internal/log"
	"hoursboard/internal/report"
	"hoursboard/internal/services"
)

const dateLayout = "2006-01-02"

type summarizeOptions struct {
	*rootOptions

	start       string
	end         string
	departments []string
	projects    []string
	users       []string
	mode        string
	x           string
	color       string
	output      string
	pngPath     string
	htmlPath    string
}

func newSummarizeCmd(root *rootOptions) *cobra.Command {
	o := &summarizeOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "summarize FILE",
		Short: "Print the total and the aggregated hours of a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0])
		},
	}
	o.addFlags(cmd)
	return cmd
}

func (o *summarizeOptions) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.start, "start", "", "First date to include (YYYY-MM-DD, default: earliest)")
	f.StringVar(&o.end, "end", "", "Last date to include (YYYY-MM-DD, default: latest)")
	f.StringSliceVar(&o.departments, "department", nil, "Keep only these departments")
	f.StringSliceVar(&o.projects, "project", nil, "Keep only these global projects")
	f.StringSliceVar(&o.users, "user", nil, "Keep only these users")
	f.StringVar(&o.mode, "mode", string(core.ModePie), "Chart mode (pie, bar, grouped-bar)")
	f.StringVar(&o.x, "x", core.ColDepartment, "Column to group by")
	f.StringVar(&o.color, "color", core.ColUser, "Second grouping column for grouped-bar")
	f.StringVarP(&o.output, "output", "o", "table", "Output format (table, csv, json, yaml)")
	f.StringVar(&o.pngPath, "png", "", "Also write the chart as PNG to this path")
	f.StringVar(&o.htmlPath, "html", "", "Also write the interactive chart page to this path")
}

// query turns the flags into a dashboard query.
func (o *summarizeOptions) query() (services.Query, error) {
	var q services.Query
	var err error
	if q.Filter.Start, err = parseDateFlag("start", o.start); err != nil {
		return q, err
	}
	if q.Filter.End, err = parseDateFlag("end", o.end); err != nil {
		return q, err
	}
	if o.departments != nil {
		q.Filter.Select(core.ColDepartment, o.departments...)
	}
	if o.projects != nil {
		// Global projects are stored upper-cased.
		upper := make([]string, len(o.projects))
		for i, p := range o.projects {
			upper[i] = strings.ToUpper(strings.TrimSpace(p))
		}
		q.Filter.Select(core.ColGlobalProject, upper...)
	}
	if o.users != nil {
		q.Filter.Select(core.ColUser, o.users...)
	}

	mode, err := core.ParseChartMode(o.mode)
	if err != nil {
		return q, err
	}
	q.Aggregate = core.AggregateRequest{Mode: mode, X: o.x, Color: o.color}
	return q, nil
}

func parseDateFlag(name, v string) (core.Date, error) {
	if v == "" {
		return core.Date{}, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return core.Date{}, fmt.Errorf("invalid --%s %q: want YYYY-MM-DD", name, v)
	}
	return core.DateOf(t), nil
}

func (o *summarizeOptions) run(ctx context.Context, w, errOut io.Writer, path string) error {
	formatter, err := report.NewFormatter(o.output)
	if err != nil {
		return err
	}
	q, err := o.query()
	if err != nil {
		return err
	}

	logger := o.logger()
	t, fp, err := loader.LoadFile(path)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "Spreadsheet loaded",
		log.FieldFilename, path,
		log.FieldFingerprint, fp,
		log.FieldRows, len(t.Records))
	warnLoad(errOut, t.Warnings)

	view, err := services.NewDashboardService(logger).Build(ctx, t, q)
	if err != nil {
		return err
	}
	if err := formatter.Format(w, services.NewSummary(view)); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if o.pngPath != "" {
		if err := writeFile(o.pngPath, func(w io.Writer) error {
			return chart.RenderPNG(w, view.Aggregation, chart.DefaultPNGWidth, chart.DefaultPNGHeight)
		}); err != nil {
			return err
		}
		logger.InfoContext(ctx, "Chart written", "path", o.pngPath)
	}
	if o.htmlPath != "" {
		if err := writeFile(o.htmlPath, func(w io.Writer) error {
			return chart.RenderHTML(w, view.Aggregation, chart.HTMLOptions{PageTitle: view.Aggregation.Title})
		}); err != nil {
			return err
		}
		logger.InfoContext(ctx, "Chart page written", "path", o.htmlPath)
	}
	return nil
}

// warnLoad reports recoverable load problems.
func warnLoad(w io.Writer, lw core.LoadWarnings) {
	if lw.InvalidDates > 0 {
		fmt.Fprintf(w, "warning: %d rows have unreadable dates and are excluded by the date filter\n", lw.InvalidDates)
	}
	if lw.InvalidMinutes > 0 {
		fmt.Fprintf(w, "warning: %d rows have unreadable minutes, counted as 0\n", lw.InvalidMinutes)
	}
}

// writeFile renders into memory first so a failed render leaves no partial file.
func writeFile(path string, render func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
