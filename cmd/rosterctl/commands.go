package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/internal/domain/phonetic"
	"github.com/okian/roster/internal/domain/resolution"
	"github.com/okian/roster/internal/domain/similarity"
	"github.com/okian/roster/internal/loadtest"
	"github.com/okian/roster/pkg/logger"
)

const outputPermission = 0o600

// errNoRecords is returned when an input file decodes to an empty roster.
var errNoRecords = errors.New("input holds no records")

// execute builds the command tree and runs it with args.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "rosterctl",
		Short: "Roster identity resolution tools",
		Long: `rosterctl resolves student identities across score records that share no
key, reconciles class standings and emphases, and reports each correction.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithWriter(stderr), logger.WithFormat("text")); err != nil {
				return err
			}
			return logger.SetLevelString(logLevel)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(newResolveCommand())
	root.AddCommand(newSoundexCommand())
	root.AddCommand(newLoadtestCommand())
	return root
}

type resolveFlags struct {
	input           string
	output          string
	semester        string
	validate        bool
	maxEditDistance int
	maxLengthDelta  int
}

func newResolveCommand() *cobra.Command {
	var f resolveFlags

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a roster file and print its corrections",
		Long: `Resolve reads a JSON roster, either a submission object or a bare array of
records, prints one line per correction to stderr in semester order and writes
the corrected records as JSON.`,
		Example: `  rosterctl resolve --input roster.json --output fixed.json
  rosterctl resolve --input roster.json --semester "Fall 2019" --validate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runResolve(cmd.Context(), &f, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&f.input, "input", "i", "", "roster JSON file (- for stdin)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write corrected records here instead of stdout")
	cmd.Flags().StringVar(&f.semester, "semester", "", "only keep students with a record in this semester")
	cmd.Flags().BoolVar(&f.validate, "validate", false, "only print corrections")
	cmd.Flags().IntVar(&f.maxEditDistance, "max-edit-distance", similarity.DefaultMaxEditDistance, "name similarity edit distance threshold")
	cmd.Flags().IntVar(&f.maxLengthDelta, "max-length-delta", similarity.DefaultMaxLengthDelta, "name similarity length difference threshold")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runResolve(ctx context.Context, f *resolveFlags, stdout, stderr io.Writer) error {
	sub, err := readSubmission(f.input)
	if err != nil {
		return err
	}
	if f.semester != "" {
		sub.CurrentSemester = f.semester
	}
	if len(sub.Records) == 0 {
		return errNoRecords
	}
	if err := resolution.Prepare(sub.Records); err != nil {
		return err
	}

	engine := resolution.New(resolution.WithMatcher(similarity.New(
		similarity.WithMaxEditDistance(f.maxEditDistance),
		similarity.WithMaxLengthDelta(f.maxLengthDelta),
	)))
	start := time.Now()
	report, err := engine.Run(ctx, sub.Records)
	if err != nil {
		return err
	}
	logger.Get().Info(ctx, "roster resolved",
		logger.Int("records", report.Records),
		logger.Int("rewrites", report.Identity.Total()),
		logger.Int("diagnostics", len(report.Diagnostics)),
		logger.Duration("took", time.Since(start)))

	for _, msg := range report.Messages() {
		fmt.Fprintln(stderr, msg)
	}
	if f.validate {
		return nil
	}

	records := resolution.FilterToSemester(sub.Records, sub.CurrentSemester)
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	data = append(data, '\n')
	if f.output == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(f.output, data, outputPermission); err != nil {
		return fmt.Errorf("write %s: %w", f.output, err)
	}
	return nil
}

// readSubmission decodes path (or stdin for "-") as a submission object or a
// bare record array.
func readSubmission(path string) (model.Submission, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return model.Submission{}, fmt.Errorf("read input: %w", err)
	}

	var sub model.Submission
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &sub.Records)
	} else {
		err = json.Unmarshal(trimmed, &sub)
	}
	if err != nil {
		return model.Submission{}, fmt.Errorf("decode input: %w", err)
	}
	return sub, nil
}

func newSoundexCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "soundex NAME...",
		Short:   "Print the phonetic code of each name",
		Example: `  rosterctl soundex Robert Rupert Tymczak`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, phonetic.Encode(name))
			}
			return nil
		},
	}
}

func newLoadtestCommand() *cobra.Command {
	cfg := loadtest.Config{}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Submit synthetic rosters to a running service and check its corrections",
		Example: `  rosterctl loadtest --url http://localhost:9080 --jobs 500 --students 80
  rosterctl loadtest --jobs 10 --output rosters.json --log-level info`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := loadtest.Run(cmd.Context(), cfg)
			if stats != nil {
				fmt.Fprintln(cmd.OutOrStdout(), stats.String())
			}
			return err
		},
	}

	cmd.Flags().StringVar(&cfg.BaseURL, "url", loadtest.DefaultBaseURL, "base URL of the service")
	cmd.Flags().IntVar(&cfg.NumJobs, "jobs", loadtest.DefaultNumJobs, "number of rosters to submit")
	cmd.Flags().IntVar(&cfg.Students, "students", loadtest.DefaultStudents, "students per roster")
	cmd.Flags().IntVar(&cfg.Workers, "workers", runtime.NumCPU()*2, "concurrent submitters")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", loadtest.DefaultTimeout, "HTTP request timeout")
	cmd.Flags().DurationVar(&cfg.PollInterval, "poll", loadtest.DefaultPollInterval, "job status poll interval")
	cmd.Flags().StringVar(&cfg.OutputFile, "output", "", "write the generated rosters to this file")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", uint64(time.Now().UnixNano()), "roster generator seed")
	cmd.Flags().BoolVar(&cfg.Verbose, "verbose", false, "log every job outcome")
	return cmd
}
