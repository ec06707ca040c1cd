package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"reel-go/internal/app"
	"reel-go/internal/config"
	"reel-go/internal/reel"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// newApp reads the config and creates a ReelApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Record", "FastForward").
func newApp(ctx context.Context, operation string, args []string) (*app.ReelApp, error) {
	cfg, _, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewReelApp(ctx, cfg, operation, strings.Join(args, " "))
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

func readConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// readPassphrase takes REEL_PASSPHRASE when set, otherwise prompts on the
// terminal. It returns "" when neither is available.
func readPassphrase(prompt string) (string, error) {
	if p := os.Getenv("REEL_PASSPHRASE"); p != "" {
		return p, nil
	}
	if !isTerminal(os.Stdin) {
		return "", nil
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

func parseVersion(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid version %q: must be a positive integer", s)
	}
	return n, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

var rootCmd = &cobra.Command{
	Use:          "reel",
	Short:        "Versioned asset ledger for the video pipeline",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		encrypt, _ := cmd.Flags().GetBool("encrypt")
		root, _ := cmd.Flags().GetString("root")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])
		cfg.LogDir = defaults["log_dir"]
		if root != "" {
			cfg.Workspace.Root = root
		}

		if encrypt {
			passphrase, err := readPassphrase("New passphrase: ")
			if err != nil {
				return err
			}
			if passphrase == "" {
				return errors.New("a passphrase is required to set up encryption")
			}
			confirm, err := readPassphrase("Repeat passphrase: ")
			if err != nil {
				return err
			}
			if confirm != passphrase {
				return errors.New("passphrases do not match")
			}
			cfg.Encryption.Type = "age"
			if err := app.SetupEncryption(cfg, passphrase); err != nil {
				return fmt.Errorf("setting up encryption: %w", err)
			}
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		if err := app.MigrateJournal(cfg); err != nil {
			return err
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID:   %s\n", hostID)
		fmt.Printf("Base Dir:  %s\n", defaults["base_dir"])
		fmt.Printf("Workspace: %s\n", cfg.Workspace.Root)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Host ID:    %s\n", cfg.HostID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Workspace:  %s (units: %s)\n", cfg.Workspace.Root, strings.Join(cfg.Workspace.UnitPrefixes, ", "))
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:      %s (%s)\n", v.Name, v.Type)
		}
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		fmt.Printf("Database:   %s\n", cfg.Database.Type)
		for _, g := range cfg.Generators {
			fmt.Printf("Generator:  %s -> %s\n", g.ContentType, g.Name)
		}
		return nil
	},
}

var configMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the journal schema up to date",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}
		if err := app.MigrateJournal(cfg); err != nil {
			return err
		}
		fmt.Println("Journal is up to date.")
		return nil
	},
}

// ledger commands
var recordCmd = &cobra.Command{
	Use:   "record DIR TYPE",
	Short: "Register new content as the next version",
	Long:  "Register new content as the next version. Content is read from --file, or from stdin.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		producer, _ := cmd.Flags().GetString("producer")

		var content io.Reader = os.Stdin
		if file != "" {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("opening content: %w", err)
			}
			defer f.Close()
			content = f
		}

		a, err := newApp(cmd.Context(), "Record", args)
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.Record(args[0], args[1], content, producer)
		if err != nil {
			return err
		}
		fmt.Printf("Recorded %s v%d (%s)\n", args[1], rec.Version, rec.Filename)
		return nil
	},
}

var versionsCmd = &cobra.Command{
	Use:   "versions DIR TYPE",
	Short: "List registered versions",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Versions", args)
		if err != nil {
			return err
		}
		defer a.Close()

		versions, latest, err := a.Versions(args[0], args[1])
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			fmt.Println("No versions registered.")
			return nil
		}

		rows := make([][]string, 0, len(versions))
		for _, v := range versions {
			mark := ""
			if latest != nil && latest.Version == v.Version {
				mark = "*"
			}
			rows = append(rows, []string{mark, strconv.Itoa(v.Version), v.Filename, formatTime(v.CreatedAt), v.Producer})
		}
		fmt.Println(renderTable(
			[]string{"", "VERSION", "FILE", "CREATED", "PRODUCER"},
			rows,
			[]columnAlignment{alignLeft, alignRight},
		))
		return nil
	},
}

var latestCmd = &cobra.Command{
	Use:   "latest DIR TYPE",
	Short: "Print the path of the latest version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Latest", args)
		if err != nil {
			return err
		}
		defer a.Close()

		rec, path, err := a.Latest(args[0], args[1])
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("no %s version registered in %s", args[1], args[0])
		}
		fmt.Println(path)
		return nil
	},
}

var setLatestCmd = &cobra.Command{
	Use:   "set-latest DIR TYPE VERSION",
	Short: "Point latest at an existing version",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := parseVersion(args[2])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "SetLatest", args)
		if err != nil {
			return err
		}
		defer a.Close()

		ok, err := a.SetLatest(args[0], args[1], version)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("version %d of %s is not registered", version, args[1])
		}
		fmt.Printf("Latest %s is now v%d\n", args[1], version)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate DIR",
	Short: "Register legacy files and unregistered versions in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Migrate", args)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Migrate(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Registered %d version(s)\n", n)
		return nil
	},
}

// expected command
var expectedCmd = &cobra.Command{
	Use:   "expected DIR",
	Short: "Print the version every stage should reach",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		document, _ := cmd.Flags().GetBool("document")

		a, err := newApp(cmd.Context(), "ExpectedVersion", args)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.ExpectedVersion(args[0], document)
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status DOCUMENT",
	Short: "Show the version state of every stage of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Status", args)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Status(args[0])
		if err != nil {
			return err
		}

		types := reel.PageContentTypes()
		headers := []string{"UNIT"}
		aligns := []columnAlignment{alignLeft}
		for _, ct := range types {
			headers = append(headers, ct.String())
			aligns = append(aligns, alignRight)
		}
		rows := make([][]string, 0, len(report.Units))
		for _, u := range report.Units {
			row := []string{a.Workspace().Rel(u.Dir)}
			for _, st := range u.Stages {
				cell := strconv.Itoa(st.Version)
				if !st.Current {
					cell += "!"
				}
				row = append(row, cell)
			}
			rows = append(rows, row)
		}

		fmt.Printf("Document %s: expected v%d, slideshows expected v%d\n", args[0], report.Expected, report.SlideshowExpected)
		if len(rows) > 0 {
			fmt.Println(renderTable(headers, rows, aligns))
		}
		for _, st := range report.Slideshows {
			state := "current"
			if !st.Current {
				state = "behind"
			}
			fmt.Printf("%-13s v%d (%s)\n", st.ContentType, st.Version, state)
		}
		if lagging := report.Lagging(); len(lagging) > 0 {
			fmt.Printf("%d stage(s) behind; run `reel fast-forward --document %s` or regenerate them\n", len(lagging), args[0])
		}
		return nil
	},
}

// fast-forward command
var fastForwardCmd = &cobra.Command{
	Use:   "fast-forward [DIR TYPE TARGET]",
	Short: "Copy the latest version forward to a target version",
	Args: func(cmd *cobra.Command, args []string) error {
		if doc, _ := cmd.Flags().GetString("document"); doc != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(3)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		document, _ := cmd.Flags().GetString("document")
		if document != "" {
			a, err := newApp(cmd.Context(), "FastForwardDocument", []string{document})
			if err != nil {
				return err
			}
			defer a.Close()

			outcomes, err := a.FastForwardDocument(document)
			if err != nil {
				return err
			}
			if len(outcomes) == 0 {
				fmt.Println("Nothing to fast-forward.")
				return nil
			}
			rows := make([][]string, 0, len(outcomes))
			for _, o := range outcomes {
				rows = append(rows, []string{
					a.Workspace().Rel(o.Dir),
					o.ContentType.String(),
					strconv.Itoa(o.Result.From),
					strconv.Itoa(o.Result.To),
					string(o.Result.Reason),
				})
			}
			fmt.Println(renderTable(
				[]string{"UNIT", "TYPE", "FROM", "TO", "RESULT"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		}

		target, err := parseVersion(args[2])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "FastForward", args)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.FastForward(args[0], args[1], target)
		if err != nil {
			return err
		}
		if !res.Advanced {
			fmt.Printf("Not advanced: %s (latest v%d)\n", res.Reason, res.From)
			return nil
		}
		fmt.Printf("Advanced %s from v%d to v%d\n", args[1], res.From, res.To)
		return nil
	},
}

// discover command
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Register versioned files that are missing from the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		document, _ := cmd.Flags().GetString("document")

		a, err := newApp(cmd.Context(), "Discover", []string{document})
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Discover(document)
		if err != nil {
			return err
		}
		fmt.Printf("Registered %d version(s)\n", n)
		return nil
	},
}

// queue commands
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage generation jobs",
}

var queueEnqueueCmd = &cobra.Command{
	Use:   "enqueue DIR TYPE TARGET [INSTRUCTION]",
	Short: "Ask for a new version to be generated",
	Long:  "Ask for a new version to be generated. The instruction is read from stdin when not given.",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseVersion(args[2])
		if err != nil {
			return err
		}
		var payload string
		if len(args) == 4 {
			payload = args[3]
		} else {
			b, err := io.ReadAll(bufio.NewReader(os.Stdin))
			if err != nil {
				return fmt.Errorf("reading instruction: %w", err)
			}
			payload = string(b)
		}

		a, err := newApp(cmd.Context(), "Enqueue", args[:3])
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.Enqueue(args[0], args[1], payload, target)
		if err != nil {
			return err
		}
		fmt.Printf("Enqueued %s\n", id)
		return nil
	},
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		document, _ := cmd.Flags().GetString("document")
		rawStatus, _ := cmd.Flags().GetString("status")

		var status reel.JobStatus
		if rawStatus != "" {
			s, ok := reel.ParseJobStatus(rawStatus)
			if !ok {
				return fmt.Errorf("unknown job status %q", rawStatus)
			}
			status = s
		}

		a, err := newApp(cmd.Context(), "ListJobs", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		jobs, err := a.Jobs(document, status)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs.")
			return nil
		}

		rows := make([][]string, 0, len(jobs))
		for _, j := range jobs {
			rows = append(rows, []string{
				a.Workspace().Rel(j.Dir),
				j.ContentType.String(),
				strconv.Itoa(j.TargetVersion),
				string(j.Status),
				j.Error,
			})
		}
		fmt.Println(renderTable(
			[]string{"DIR", "TYPE", "TARGET", "STATUS", "ERROR"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight},
		))
		return nil
	},
}

var queuePayloadCmd = &cobra.Command{
	Use:   "payload DIR TYPE TARGET",
	Short: "Print the instruction of a job",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseVersion(args[2])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "Payload", args)
		if err != nil {
			return err
		}
		defer a.Close()

		payload, err := a.Payload(args[0], args[1], target)
		if err != nil {
			return err
		}
		fmt.Println(payload)
		return nil
	},
}

var queueFailCmd = &cobra.Command{
	Use:   "fail DIR TYPE TARGET MESSAGE",
	Short: "Archive a pending or stuck job as failed",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseVersion(args[2])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "FailJob", args)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.FailJob(args[0], args[1], target, args[3]); err != nil {
			return err
		}
		fmt.Println("Job marked failed.")
		return nil
	},
}

var queueLogCmd = &cobra.Command{
	Use:   "log [DIR]",
	Short: "Show journaled job transitions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		typeName, _ := cmd.Flags().GetString("type")
		dir := ""
		if len(args) == 1 {
			dir = args[0]
		}

		a, err := newApp(cmd.Context(), "JobLog", args)
		if err != nil {
			return err
		}
		defer a.Close()

		events, err := a.JobLog(dir, typeName, limit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No job events recorded.")
			return nil
		}
		for _, ev := range events {
			fmt.Printf("%s  %-10s  %-12s  v%-3d  %s  %s\n",
				formatTime(ev.At), ev.Status, ev.ContentType, ev.TargetVersion, a.Workspace().Rel(ev.Dir), ev.Error)
		}
		return nil
	},
}

// ledger log command
var logCmd = &cobra.Command{
	Use:   "log [DIR]",
	Short: "Show journaled ledger events",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		typeName, _ := cmd.Flags().GetString("type")
		dir := ""
		if len(args) == 1 {
			dir = args[0]
		}

		a, err := newApp(cmd.Context(), "LedgerLog", args)
		if err != nil {
			return err
		}
		defer a.Close()

		events, err := a.LedgerLog(dir, typeName, limit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No ledger events recorded.")
			return nil
		}
		for _, ev := range events {
			fmt.Printf("%s  %-12s  %-12s  v%-3d  %-14s  %s\n",
				formatTime(ev.At), ev.Action, ev.ContentType, ev.Version, ev.Producer, a.Workspace().Rel(ev.Dir))
		}
		return nil
	},
}

// worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process generation jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		document, _ := cmd.Flags().GetString("document")
		interval, _ := cmd.Flags().GetDuration("interval")
		once, _ := cmd.Flags().GetBool("once")

		a, err := newApp(cmd.Context(), "Worker", []string{document})
		if err != nil {
			return err
		}
		defer a.Close()

		return a.RunWorker(cmd.Context(), document, interval, once)
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Exchange asset files with the vault and register what arrived",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Sync", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		var passphrase string
		if a.EncryptionEnabled() {
			passphrase, err = readPassphrase("Passphrase (empty to push only): ")
			if err != nil {
				return err
			}
		}

		sum, err := a.Sync(cmd.Context(), passphrase)
		if err != nil {
			return err
		}
		fmt.Printf("Pushed %d, pulled %d, skipped %d, registered %d\n", sum.Pushed, sum.Pulled, sum.Skipped, sum.Discovered)
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Register new versioned files as they appear",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Watch", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Printf("Watching %s\n", a.Workspace().Root)
		return a.Watch(cmd.Context())
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "History", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-20s  %s  %-8s  %-10s  %s\n",
				op.ID,
				op.Operation,
				formatTime(op.StartedAt),
				op.Status,
				duration,
				op.Parameters,
			)
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().Bool("encrypt", false, "Generate an age key pair and encrypt synced files")
	configInitCmd.Flags().String("root", "", "Workspace root (default: <base_dir>/output)")
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configMigrateCmd)

	// ledger
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringP("file", "f", "", "Read content from this file instead of stdin")
	recordCmd.Flags().StringP("producer", "p", reel.ProducerManualEdit, "Producer tag stored with the version")
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(setLatestCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().IntP("limit", "n", 50, "Maximum number of events to show")
	logCmd.Flags().StringP("type", "t", "", "Only show events for this content type")

	// consistency
	rootCmd.AddCommand(expectedCmd)
	expectedCmd.Flags().Bool("document", false, "Compute over the whole document instead of one unit")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(fastForwardCmd)
	fastForwardCmd.Flags().StringP("document", "d", "", "Fast-forward every lagging stage of a document")
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().StringP("document", "d", "", "Only discover in this document")

	// queue subcommands
	queueCmd.AddCommand(queueEnqueueCmd)
	queueCmd.AddCommand(queueListCmd)
	queueListCmd.Flags().StringP("document", "d", "", "Only list jobs in this document")
	queueListCmd.Flags().StringP("status", "s", "", "Only list jobs in this state (pending, processing, completed, failed)")
	queueCmd.AddCommand(queuePayloadCmd)
	queueCmd.AddCommand(queueFailCmd)
	queueCmd.AddCommand(queueLogCmd)
	queueLogCmd.Flags().IntP("limit", "n", 50, "Maximum number of events to show")
	queueLogCmd.Flags().StringP("type", "t", "", "Only show events for this content type")

	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().StringP("document", "d", "", "Only process jobs in this document")
	workerCmd.Flags().Duration("interval", 0, "Poll interval (default: worker.poll_interval_seconds)")
	workerCmd.Flags().Bool("once", false, "Make a single pass and exit")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
