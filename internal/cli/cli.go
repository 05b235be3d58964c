// Package cli implements schedctl, an offline front end to the scheduling
// engine. Every command loads a YAML plan into the in-memory store and runs
// the same application services the API uses.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/HenryGill4/OpCentrix-sub006/internal/application"
	"github.com/HenryGill4/OpCentrix-sub006/internal/config"
	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
	"github.com/HenryGill4/OpCentrix-sub006/internal/infrastructure/lock"
	"github.com/HenryGill4/OpCentrix-sub006/internal/infrastructure/memory"
	"github.com/HenryGill4/OpCentrix-sub006/internal/scheduling"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/errors"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/logging"
)

// Version is set at build time.
var Version = "dev"

const (
	outputText = "text"
	outputJSON = "json"
)

type options struct {
	planFile   string
	configFile string
	output     string
	verbose    bool
}

// BuildCLI returns the schedctl root command.
func BuildCLI() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "schedctl",
		Short: "Validate and inspect SLS build schedules offline",
		Long: `schedctl runs the scheduling engine over a YAML plan file:
conflict and parameter validation, machine row layout, powder changeover
times, cost estimates and scheduler views.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case outputText, outputJSON:
				return nil
			default:
				return fmt.Errorf("unknown output format %q (want text or json)", opts.output)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.planFile, "plan", "p", "plan.yaml", "plan file path")
	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file path (default: $OPCENTRIX_CONFIG or ./config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputText, "output format: text or json")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log engine activity to stderr")

	rootCmd.AddCommand(buildValidateCommand(opts))
	rootCmd.AddCommand(buildLayoutCommand(opts))
	rootCmd.AddCommand(buildChangeoverCommand(opts))
	rootCmd.AddCommand(buildEstimateCommand(opts))
	rootCmd.AddCommand(buildViewCommand(opts))

	return rootCmd
}

// session is a plan loaded into a fresh in-memory store.
type session struct {
	plan    *Plan
	service *application.SchedulingService
	out     io.Writer
	json    bool
}

// open loads config and plan. With seedJobs the plan's jobs are stored as
// given; otherwise the store starts with machines only.
func (o *options) open(cmd *cobra.Command, seedJobs bool) (*session, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	plan, err := LoadPlan(o.planFile)
	if err != nil {
		return nil, err
	}

	logger := logging.NewNop()
	if o.verbose {
		lc := cfg.LoggerConfig()
		lc.ServiceName = "schedctl"
		lc.Output = cmd.ErrOrStderr()
		logger = logging.New(lc)
	}

	store := memory.NewStore()
	store.SeedMachines(plan.domainMachines()...)
	if seedJobs {
		store.SeedJobs(plan.domainJobs()...)
	}

	repos := application.Repositories{
		Jobs:       store.Jobs(),
		Machines:   store.Machines(),
		Parts:      store.Parts(),
		Stages:     store.Stages(),
		Executions: store.Executions(),
	}
	engine := application.NewEngine(cfg.Engine(), store.Machines())

	return &session{
		plan:    plan,
		service: application.NewSchedulingService(repos, engine, lock.NewKeyedLocker(), nil, logger),
		out:     cmd.OutOrStdout(),
		json:    o.output == outputJSON,
	}, nil
}

// emit writes v as indented JSON, or calls text with a tab-aligned writer.
func (s *session) emit(v any, text func(w io.Writer)) error {
	if s.json {
		enc := json.NewEncoder(s.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	text(tw)
	return tw.Flush()
}

type jobReport struct {
	JobID     string   `json:"jobId"`
	MachineID string   `json:"machineId"`
	Accepted  bool     `json:"accepted"`
	Errors    []string `json:"errors"`
	Warnings  []string `json:"warnings"`
}

func buildValidateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Place the plan's jobs in order and report conflicts",
		Long: `Schedules each job of the plan in file order against the jobs already
accepted on its machine. Rejected jobs are reported and make the command fail.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd, false)
			if err != nil {
				return err
			}
			reports, err := s.validate(cmd.Context())
			if err != nil {
				return err
			}

			rejected := 0
			for _, r := range reports {
				if !r.Accepted {
					rejected++
				}
			}

			if err := s.emit(reports, func(w io.Writer) {
				fmt.Fprintln(w, "JOB\tMACHINE\tRESULT\tDETAIL")
				for _, r := range reports {
					result := "accepted"
					if !r.Accepted {
						result = "rejected"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.JobID, r.MachineID, result, firstLine(r.Errors))
					for _, e := range tail(r.Errors) {
						fmt.Fprintf(w, "\t\t\t%s\n", e)
					}
					for _, warn := range r.Warnings {
						fmt.Fprintf(w, "\t\t\twarning: %s\n", warn)
					}
				}
			}); err != nil {
				return err
			}

			if rejected > 0 {
				return fmt.Errorf("%d of %d jobs rejected", rejected, len(reports))
			}
			return nil
		},
	}
}

func (s *session) validate(ctx context.Context) ([]jobReport, error) {
	reports := make([]jobReport, 0, len(s.plan.Jobs))
	for _, j := range s.plan.Jobs {
		report := jobReport{JobID: j.ID, MachineID: j.Machine, Errors: []string{}, Warnings: []string{}}

		result, err := s.service.ScheduleJob(ctx, j.command())
		switch {
		case err != nil && application.IsInfrastructure(err):
			return nil, err
		case err != nil:
			report.Errors = append(report.Errors, errors.FromError(err).Message)
		default:
			report.Accepted = result.Job != nil
			report.Errors = append(report.Errors, result.Validation.Errors...)
			report.Warnings = append(report.Warnings, result.Validation.Warnings...)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func buildLayoutCommand(opts *options) *cobra.Command {
	var machineID, from, to string

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Lay out a machine's jobs into rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd, true)
			if err != nil {
				return err
			}

			window, err := s.window(machineID, from, to)
			if err != nil {
				return err
			}
			row, err := s.service.GetMachineRow(cmd.Context(), application.GetMachineRowQuery{
				MachineID: machineID,
				From:      window.Start,
				To:        window.End,
			})
			if err != nil {
				return err
			}

			return s.emit(row, func(w io.Writer) {
				fmt.Fprintf(w, "machine %s: %d layer(s), row height %dpx\n", row.MachineID, row.MaxLayers, row.RowHeightPx)
				fmt.Fprintln(w, "LAYER\tJOB\tSTATUS\tSTART\tEND")
				for _, j := range row.Jobs {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", j.Layer, j.JobID, j.Status, formatTime(j.ScheduledStart), formatTime(j.ScheduledEnd))
				}
			})
		},
	}

	cmd.Flags().StringVarP(&machineID, "machine", "m", "", "machine ID")
	cmd.Flags().StringVar(&from, "from", "", "window start (default: first job of the machine)")
	cmd.Flags().StringVar(&to, "to", "", "window end (default: last job of the machine)")
	_ = cmd.MarkFlagRequired("machine")

	return cmd
}

// window resolves --from/--to, defaulting to the span of the machine's jobs.
func (s *session) window(machineID, from, to string) (domain.TimeRange, error) {
	span, ok := s.plan.span(machineID)
	if !ok && (from == "" || to == "") {
		return domain.TimeRange{}, fmt.Errorf("machine %s has no jobs in the plan; pass --from and --to", machineID)
	}
	if from != "" {
		t, err := parseTime(from)
		if err != nil {
			return domain.TimeRange{}, fmt.Errorf("--from: %w", err)
		}
		span.Start = t
	}
	if to != "" {
		t, err := parseTime(to)
		if err != nil {
			return domain.TimeRange{}, fmt.Errorf("--to: %w", err)
		}
		span.End = t
	}
	return span, nil
}

func buildChangeoverCommand(opts *options) *cobra.Command {
	var machineID, from, to string

	cmd := &cobra.Command{
		Use:   "changeover",
		Short: "Powder changeover minutes for a machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd, false)
			if err != nil {
				return err
			}

			result, err := s.service.CalculateOptimalPowderChangeoverTime(cmd.Context(), application.ChangeoverQuery{
				MachineID:    machineID,
				FromMaterial: strings.TrimSpace(from),
				ToMaterial:   strings.TrimSpace(to),
			})
			if err != nil {
				return err
			}

			return s.emit(result, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %s -> %s\t%d min\n", result.MachineID, orNone(result.FromMaterial), result.ToMaterial, result.Minutes)
			})
		},
	}

	cmd.Flags().StringVarP(&machineID, "machine", "m", "", "machine ID")
	cmd.Flags().StringVar(&from, "from", "", "current material (default: the machine's loaded material)")
	cmd.Flags().StringVar(&to, "to", "", "next material")
	_ = cmd.MarkFlagRequired("machine")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func buildEstimateCommand(opts *options) *cobra.Command {
	var jobIDs []string

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Cost estimates for the plan's jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd, true)
			if err != nil {
				return err
			}

			ids := jobIDs
			if len(ids) == 0 {
				ids = s.plan.jobIDs()
			}
			estimates := make([]*application.CostEstimateDTO, 0, len(ids))
			for _, id := range ids {
				e, err := s.service.EstimateJob(cmd.Context(), application.GetJobQuery{JobID: id})
				if err != nil {
					return fmt.Errorf("job %s: %w", id, err)
				}
				estimates = append(estimates, e)
			}

			return s.emit(estimates, func(w io.Writer) {
				fmt.Fprintln(w, "JOB\tHOURS\tMATERIAL\tLABOR\tMACHINE\tARGON\tCHANGEOVER\tTOTAL")
				for _, e := range estimates {
					b := e.Breakdown
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s (%d min)\t%s\n",
						e.JobID,
						b.DurationHours.StringFixed(2),
						b.Material.StringFixed(2),
						b.Labor.StringFixed(2),
						b.Machine.StringFixed(2),
						b.Argon.StringFixed(2),
						b.Changeover.StringFixed(2), e.ChangeoverMinutes,
						e.Total,
					)
				}
			})
		},
	}

	cmd.Flags().StringSliceVarP(&jobIDs, "job", "j", nil, "job IDs to estimate (default: all)")

	return cmd
}

func buildViewCommand(opts *options) *cobra.Command {
	var mode, start string

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Scheduler grid for a view mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd, true)
			if err != nil {
				return err
			}

			startDate := time.Now().UTC().Truncate(24 * time.Hour)
			if span, ok := s.plan.span(""); ok {
				startDate = span.Start.Truncate(24 * time.Hour)
			}
			if start != "" {
				if startDate, err = parseTime(start); err != nil {
					return fmt.Errorf("--start: %w", err)
				}
			}

			view, err := s.service.GetSchedulerView(cmd.Context(), application.GetSchedulerViewQuery{
				Mode:      mode,
				StartDate: startDate,
			})
			if err != nil {
				return err
			}

			return s.emit(view, func(w io.Writer) {
				window := view.Window()
				fmt.Fprintf(w, "%s view\t%s - %s\n", view.Mode, formatTime(window.Start), formatTime(window.End))
				fmt.Fprintf(w, "slots\t%d per day, %d min each\n", view.SlotsPerDay, view.SlotMinutes)
				fmt.Fprintf(w, "machines\t%s\n", strings.Join(view.Machines, ", "))
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(scheduling.ViewWeek), "view mode: week, day or hour")
	cmd.Flags().StringVar(&start, "start", "", "first date (default: the plan's first job)")

	return cmd
}

// parseTime accepts RFC 3339 timestamps and plain dates (UTC midnight).
func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not an RFC 3339 time or a YYYY-MM-DD date", value)
	}
	return t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}

func firstLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}

func tail(lines []string) []string {
	if len(lines) < 2 {
		return nil
	}
	return lines[1:]
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
