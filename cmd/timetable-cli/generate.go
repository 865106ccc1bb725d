package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sangmeshafzalpur/minimini/internal/csvio"
	"github.com/sangmeshafzalpur/minimini/internal/dto"
	"github.com/sangmeshafzalpur/minimini/internal/service"
	"github.com/sangmeshafzalpur/minimini/internal/timetable"
	"github.com/sangmeshafzalpur/minimini/pkg/config"
	"github.com/sangmeshafzalpur/minimini/pkg/export"
	"github.com/sangmeshafzalpur/minimini/pkg/logger"
)

type generateOptions struct {
	subjectsPath string
	roomsPath    string
	divisions    []string
	days         int
	periods      int
	schedule     string
	date         string
	random       bool
	format       string
	out          string
	delimiter    string
}

func newGenerateCmd() *cobra.Command {
	opts := generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the slot allocator for every division and render the week",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.New(&config.Config{Log: config.LogConfig{Level: "info", Format: "console"}})
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck
			return runGenerate(opts, cmd.OutOrStdout(), log)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.subjectsPath, "subjects", "", "subjects CSV (name,type,count,faculty)")
	flags.StringVar(&opts.roomsPath, "rooms", "", "rooms CSV (room)")
	flags.StringSliceVar(&opts.divisions, "divisions", []string{"A"}, "division labels in scheduling order")
	flags.IntVar(&opts.days, "days", 5, "working days (1-6)")
	flags.IntVar(&opts.periods, "periods", 7, "periods per day (1-12)")
	flags.StringVar(&opts.schedule, "schedule", string(timetable.ScheduleMorning), "Morning or Evening")
	flags.StringVar(&opts.date, "date", "", "seed date YYYY-MM-DD, defaults to today")
	flags.BoolVar(&opts.random, "random", false, "seed from the clock instead of the date")
	flags.StringVar(&opts.format, "format", "table", "table, json, csv or slots")
	flags.StringVar(&opts.out, "out", "", "write output to this path instead of stdout")
	flags.StringVar(&opts.delimiter, "delimiter", ",", "input CSV delimiter")
	_ = cmd.MarkFlagRequired("subjects")
	_ = cmd.MarkFlagRequired("rooms")
	return cmd
}

func runGenerate(opts generateOptions, stdout io.Writer, log *zap.Logger) error {
	delim, err := parseDelimiter(opts.delimiter)
	if err != nil {
		return err
	}
	cfg, err := buildConfiguration(opts, delim)
	if err != nil {
		return err
	}
	run, err := runOptions(opts)
	if err != nil {
		return err
	}

	result, err := timetable.Generate(cfg, run)
	if err != nil {
		return err
	}
	if result.Warning != "" {
		log.Warn(result.Warning)
	}
	for _, division := range result.Order {
		if sf, ok := result.Shortfalls[division]; ok {
			log.Warn("unplaced sessions", zap.String("division", division), zap.Int("unplaced", sf.Unplaced), zap.Any("remaining", sf.Remaining))
		}
	}

	out := stdout
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close() //nolint:errcheck
		out = f
	}
	return render(out, opts.format, cfg, result)
}

func buildConfiguration(opts generateOptions, delim rune) (timetable.Configuration, error) {
	if opts.days < 1 || opts.days > len(timetable.Days) {
		return timetable.Configuration{}, fmt.Errorf("--days must be between 1 and %d", len(timetable.Days))
	}
	if opts.periods < 1 || opts.periods > 12 {
		return timetable.Configuration{}, fmt.Errorf("--periods must be between 1 and 12")
	}
	schedule := timetable.ScheduleType(opts.schedule)
	if schedule != timetable.ScheduleMorning && schedule != timetable.ScheduleEvening {
		return timetable.Configuration{}, fmt.Errorf("--schedule must be Morning or Evening")
	}

	subjects, err := csvio.LoadSubjectsFile(opts.subjectsPath, delim)
	if err != nil {
		return timetable.Configuration{}, err
	}
	rooms, err := csvio.LoadRoomsFile(opts.roomsPath, delim)
	if err != nil {
		return timetable.Configuration{}, err
	}

	divisions := make([]string, 0, len(opts.divisions))
	for _, d := range opts.divisions {
		if d = strings.TrimSpace(d); d != "" {
			divisions = append(divisions, d)
		}
	}
	if len(divisions) == 0 {
		return timetable.Configuration{}, fmt.Errorf("at least one division is required")
	}

	return timetable.Configuration{
		WorkingDays:   opts.days,
		PeriodsPerDay: opts.periods,
		ScheduleType:  schedule,
		Subjects:      subjects,
		Rooms:         rooms,
		Divisions:     divisions,
	}, nil
}

func runOptions(opts generateOptions) (timetable.Options, error) {
	run := timetable.Options{Reproducible: !opts.random}
	if opts.date != "" {
		date, err := time.Parse("2006-01-02", opts.date)
		if err != nil {
			return run, fmt.Errorf("--date: %w", err)
		}
		run.Date = date
	}
	return run, nil
}

func parseDelimiter(raw string) (rune, error) {
	if raw == `\t` {
		return '\t', nil
	}
	runes := []rune(raw)
	if len(runes) != 1 {
		return 0, fmt.Errorf("--delimiter must be a single character")
	}
	return runes[0], nil
}

func render(out io.Writer, format string, cfg timetable.Configuration, result *timetable.Result) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "slots":
		return csvio.WriteSlots(out, result)
	case "csv":
		payload, err := export.NewCSVExporter().Render(grid(cfg, result))
		if err != nil {
			return err
		}
		_, err = out.Write(payload)
		return err
	case "table":
		return writeTable(out, grid(cfg, result))
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func grid(cfg timetable.Configuration, result *timetable.Result) export.Dataset {
	divisions := make([]dto.DivisionTimetable, 0, len(result.Order))
	for _, name := range result.Order {
		divisions = append(divisions, dto.DivisionTimetable{Division: name, Days: result.Divisions[name]})
	}
	return service.GridDataset("Timetable", cfg.PeriodsPerDay, divisions)
}

func writeTable(out io.Writer, data export.Dataset) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(data.Headers, "\t"))
	for _, row := range data.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}
