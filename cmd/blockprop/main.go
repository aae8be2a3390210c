package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ozgb/blockprop/internal/buildinfo"
	"github.com/ozgb/blockprop/pkg/analyze"
	"github.com/ozgb/blockprop/pkg/config"
	"github.com/ozgb/blockprop/pkg/core"
	"github.com/ozgb/blockprop/pkg/download"
	"github.com/ozgb/blockprop/pkg/extract"
	"github.com/ozgb/blockprop/pkg/loki"
	"github.com/ozgb/blockprop/pkg/report"
	"github.com/ozgb/blockprop/pkg/source/journal"
	tuimodel "github.com/ozgb/blockprop/pkg/tui/model"
)

var (
	configPath  string
	secretsPath string

	logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "blockprop",
	Short: "Block-propagation latency benchmarks for a node fleet",
	Long:  "Blockprop downloads node logs from a Loki backend (or the local journal), extracts seal/import timestamp pairs per block, and reports per-node propagation statistics.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to blockprop.yaml")
	rootCmd.PersistentFlags().StringVar(&secretsPath, "secrets", "", "path to JSON secrets file (sops-encrypted or plain)")

	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configPath != "" {
		c, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	} else {
		cfg = config.Default()
	}
	if secretsPath != "" {
		s, err := config.LoadSecrets(secretsPath)
		if err != nil {
			return nil, err
		}
		cfg.ApplySecrets(s)
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, "config:", e)
		}
		return nil, fmt.Errorf("invalid configuration")
	}
	return cfg, nil
}

// parseTime accepts ISO 8601, e.g. "2024-05-01T12:00:00Z" or a zone-less
// variant taken as UTC.
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q: use ISO 8601, e.g. 2024-05-01T12:00:00Z", s)
}

// parseHeaders turns "Key: Value" flags into a header map.
func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		key, value, ok := strings.Cut(h, ":")
		if !ok {
			return nil, fmt.Errorf("invalid header %q: expected 'Key: Value'", h)
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headers, nil
}

// readNodesFile reads one node name per line, skipping blanks.
func readNodesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("nodes file: %w", err)
	}
	defer f.Close()

	var nodes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if n := strings.TrimSpace(scanner.Text()); n != "" {
			nodes = append(nodes, n)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nodes, nil
}

// --- Download ---

var downloadFlags struct {
	from         string
	to           string
	nodes        []string
	nodesFile    string
	url          string
	label        string
	headers      []string
	outputDir    string
	compress     bool
	source       string
	unitTemplate string
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download node logs for a time range into a run directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		opts, fetch, err := downloadSetup(cfg)
		if err != nil {
			return err
		}

		runDir, err := download.Run(cmd.Context(), opts, fetch, logger)
		if err != nil {
			return err
		}
		fmt.Println(runDir)
		return nil
	},
}

func init() {
	f := downloadCmd.Flags()
	f.StringVar(&downloadFlags.from, "from", "", "start time (ISO 8601)")
	f.StringVar(&downloadFlags.to, "to", "", "end time (ISO 8601)")
	f.StringArrayVar(&downloadFlags.nodes, "node", nil, "node name (repeatable; default: config fleet)")
	f.StringVar(&downloadFlags.nodesFile, "nodes-file", "", "file with one node name per line")
	f.StringVar(&downloadFlags.url, "url", "", "Loki base URL (overrides config)")
	f.StringVar(&downloadFlags.label, "label", "", "Loki label to select nodes by (overrides config)")
	f.StringArrayVar(&downloadFlags.headers, "header", nil, "extra header 'Key: Value' (repeatable)")
	f.StringVar(&downloadFlags.outputDir, "output-dir", "logs", "base output directory")
	f.BoolVar(&downloadFlags.compress, "compress", false, "gzip per-node log files")
	f.StringVar(&downloadFlags.source, "source", "loki", "log source: loki or journal")
	f.StringVar(&downloadFlags.unitTemplate, "unit-template", "%s.service", "systemd unit per node (journal source)")
	downloadCmd.MarkFlagRequired("from")
	downloadCmd.MarkFlagRequired("to")
}

func downloadSetup(cfg *config.Config) (download.Options, download.Fetch, error) {
	start, err := parseTime(downloadFlags.from)
	if err != nil {
		return download.Options{}, nil, err
	}
	end, err := parseTime(downloadFlags.to)
	if err != nil {
		return download.Options{}, nil, err
	}
	if !end.After(start) {
		return download.Options{}, nil, fmt.Errorf("--to must be after --from")
	}

	if downloadFlags.url != "" {
		cfg.Loki.URL = downloadFlags.url
	}
	if downloadFlags.label != "" {
		cfg.Label = downloadFlags.label
	}

	nodes := cfg.Nodes
	switch {
	case len(downloadFlags.nodes) > 0 && downloadFlags.nodesFile != "":
		return download.Options{}, nil, fmt.Errorf("--node and --nodes-file are mutually exclusive")
	case len(downloadFlags.nodes) > 0:
		nodes = downloadFlags.nodes
	case downloadFlags.nodesFile != "":
		nodes, err = readNodesFile(downloadFlags.nodesFile)
		if err != nil {
			return download.Options{}, nil, err
		}
	}

	opts := download.Options{
		BaseDir:  downloadFlags.outputDir,
		Compress: downloadFlags.compress,
		Nodes:    nodes,
		Start:    start,
		End:      end,
		URL:      cfg.Loki.URL,
		Label:    cfg.Label,
	}

	var fetch download.Fetch
	switch downloadFlags.source {
	case "loki":
		headers, err := parseHeaders(downloadFlags.headers)
		if err != nil {
			return download.Options{}, nil, err
		}
		for k, v := range cfg.Loki.Headers {
			if _, ok := headers[k]; !ok {
				headers[k] = v
			}
		}
		client := loki.New(cfg.Loki.URL, loki.Options{Token: cfg.Loki.Token, Headers: headers}, logger)
		fetch = func(ctx context.Context, node string, write func(string) error) error {
			selector := loki.Selector(cfg.Label, node)
			return client.QueryRange(ctx, selector, start, end, func(e loki.Entry) error {
				return write(e.Line)
			})
		}
	case "journal":
		src := journal.New(downloadFlags.unitTemplate, logger)
		opts.URL = "journal://" + downloadFlags.unitTemplate
		fetch = func(ctx context.Context, node string, write func(string) error) error {
			return src.Lines(ctx, node, start, end, func(_ time.Time, line string) error {
				return write(line)
			})
		}
	default:
		return download.Options{}, nil, fmt.Errorf("unknown source %q: expected loki or journal", downloadFlags.source)
	}

	return opts, fetch, nil
}

// --- Extract ---

var extractFlags struct {
	logsDir    string
	reportPath string
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract propagation measurements from a run directory",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runExtract(cfg, extractFlags.logsDir, extractFlags.reportPath)
	},
}

func init() {
	f := extractCmd.Flags()
	f.StringVar(&extractFlags.logsDir, "logs", "", "run directory produced by download")
	f.StringVar(&extractFlags.reportPath, "report", "propagation_report.txt", "report file to append to")
	extractCmd.MarkFlagRequired("logs")
}

func runExtract(cfg *config.Config, logsDir, reportPath string) error {
	seal, err := core.NewMarker(cfg.Markers.Seal)
	if err != nil {
		return err
	}
	imp, err := core.NewMarker(cfg.Markers.Import)
	if err != nil {
		return err
	}

	res, err := extract.Run(logsDir, extract.Options{Seal: seal, Import: imp, Layouts: cfg.Layouts}, logger)
	if err != nil {
		return err
	}

	comments := []string{
		fmt.Sprintf("extracted from %s at %s", logsDir, time.Now().UTC().Format(time.RFC3339)),
		fmt.Sprintf("skipped: orphan_imports=%d orphan_seals=%d duplicate_seals=%d self_imports=%d bad_timestamps=%d",
			res.OrphanImports, res.OrphanSeals, res.DuplicateSeals, res.SelfImports, res.BadTimestamps),
	}
	if err := report.Append(reportPath, res.Measurements, comments...); err != nil {
		return err
	}
	logger.Info("report updated", "path", reportPath, "records", len(res.Measurements))
	return nil
}

// --- Analyze ---

var analyzeFlags struct {
	reportPath string
	outPath    string
	nodes      []string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compute per-node statistics from a propagation report",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runAnalyze(analyzeFlags.reportPath, analyzeFlags.outPath, analyzeFlags.nodes)
	},
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeFlags.reportPath, "report", "propagation_report.txt", "report file to analyze")
	f.StringVar(&analyzeFlags.outPath, "out", "", "write the summary to this file instead of stdout")
	f.StringArrayVar(&analyzeFlags.nodes, "node", nil, "restrict to these nodes (repeatable)")
}

func runAnalyze(reportPath, outPath string, nodes []string) error {
	ms, err := report.Read(reportPath)
	if err != nil {
		return err
	}
	if len(nodes) > 0 {
		keep := make(map[string]bool, len(nodes))
		for _, n := range nodes {
			keep[n] = true
		}
		filtered := ms[:0]
		for _, m := range ms {
			if keep[m.Node] {
				filtered = append(filtered, m)
			}
		}
		ms = filtered
	}
	if len(ms) == 0 {
		return fmt.Errorf("no measurements in %s", reportPath)
	}

	stats := analyze.Compute(ms)
	header := fmt.Sprintf("propagation statistics from %s (%d measurements)", reportPath, len(ms))

	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create summary: %w", err)
		}
		defer f.Close()
		if err := analyze.WriteSummary(f, stats, header); err != nil {
			return err
		}
		logger.Info("summary written", "path", outPath, "nodes", len(stats))
	}

	fmt.Print(analyze.RenderTable(stats, header))
	return nil
}

// --- Run: download + extract + analyze ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Download, extract, and analyze in one invocation",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		opts, fetch, err := downloadSetup(cfg)
		if err != nil {
			return err
		}

		runDir, err := download.Run(cmd.Context(), opts, fetch, logger)
		if err != nil {
			return err
		}

		reportPath := filepath.Join(runDir, "propagation_report.txt")
		if err := runExtract(cfg, runDir, reportPath); err != nil {
			return err
		}
		return runAnalyze(reportPath, filepath.Join(runDir, "propagation_summary.txt"), nil)
	},
}

func init() {
	runCmd.Flags().AddFlagSet(downloadCmd.Flags())
	runCmd.MarkFlagRequired("from")
	runCmd.MarkFlagRequired("to")
}

// --- View ---

var viewFlags struct {
	reportPath string
}

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Browse a propagation report interactively",
	RunE: func(_ *cobra.Command, _ []string) error {
		app := tuimodel.New(viewFlags.reportPath)
		p := tea.NewProgram(app, tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	viewCmd.Flags().StringVar(&viewFlags.reportPath, "report", "propagation_report.txt", "report file to view")
}

// --- Version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("blockprop %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	},
}
