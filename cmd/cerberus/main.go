package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dfir-tools/cerberus/internal/config"
	"github.com/dfir-tools/cerberus/internal/engine"
	"github.com/dfir-tools/cerberus/internal/report"
	"github.com/dfir-tools/cerberus/pkg/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorRed    = "\033[31m"
	colorOrange = "\033[38;5;208m"
	colorGray   = "\033[38;5;245m"
)

// Exit codes: 0 clean, 1 findings present, 2 fatal error.
const (
	exitClean    = 0
	exitFindings = 1
	exitFatal    = 2
)

var (
	version = "0.1.0"
	logger  *zap.Logger
	verbose bool
)

func main() {
	exitCode := exitClean

	rootCmd := &cobra.Command{
		Use:   "cerberus",
		Short: "Cerberus - Indicator-of-Compromise Scanner for Forensic Triage",
		Long: `Scans a directory tree for indicators of compromise using signature
rules, known-bad hash lists and filename patterns, expanding archives
and carving Windows forensic artifacts along the way.`,
		Version: version,
		Run: func(cmd *cobra.Command, args []string) {
			printBanner()
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.AddCommand(scanCmd(&exitCode))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitFatal)
	}
	os.Exit(exitCode)
}

// printBanner prints the startup banner
func printBanner() {
	fmt.Println()
	fmt.Printf("%s", colorOrange)
	fmt.Println("▄████▄ ██████ ████▄  ████▄  ██████ ████▄  ██  ██ ▄█████")
	fmt.Println("██     ██▄▄   ██▄▄█▀ ██▄▄█▀ ██▄▄   ██▄▄█▀ ██  ██ ▀███▄ ")
	fmt.Println("▀████▀ ██████ ██  ██ ████▀  ██████ ██  ██ ▀████▀ █████▀")
	fmt.Printf("%s", colorReset)
	fmt.Println()
	fmt.Printf("%sIoC Scanner v%s%s\n", colorGray, version, colorReset)
	fmt.Println()
}

// scanCmd creates the scan command
func scanCmd(exitCode *int) *cobra.Command {
	var (
		workers       int
		rulesPath     string
		hashLists     []string
		filenameLists []string
		noArchives    bool
		maxDepth      int
		maxExpansion  string
		scanEvtx      bool
		scanRegistry  bool
		levenshtein   bool
		algorithms    []string
		exclude       []string
		reportFormat  string
		outputFile    string
		logFile       string
	)

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan a directory tree for indicators of compromise",
		Long: `Recursively scan a directory for signature, hash and filename
indicators. Archives are expanded in memory; Windows event logs and
registry hives can be carved and scanned record by record.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if verbose && logFile == "" {
				logger, err = zap.NewDevelopment()
			} else {
				level := zapcore.WarnLevel
				if verbose {
					level = zapcore.DebugLevel
				}
				sink := "stderr"
				if logFile != "" {
					sink = logFile
				}
				zcfg := zap.Config{
					Level:            zap.NewAtomicLevelAt(level),
					Encoding:         "json",
					OutputPaths:      []string{sink},
					ErrorOutputPaths: []string{"stderr"},
					EncoderConfig:    zap.NewProductionEncoderConfig(),
				}
				logger, err = zcfg.Build()
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
				return err
			}
			defer logger.Sync()

			cfg, err := config.LoadConfig()
			if err != nil {
				logger.Error("Failed to load config", zap.Error(err))
				return err
			}

			// Override config with CLI flags
			cfg.Path = args[0]
			if workers > 0 {
				cfg.Workers = workers
			}
			if rulesPath != "" {
				cfg.RulesPath = rulesPath
			}
			if len(hashLists) > 0 {
				cfg.HashLists = hashLists
			}
			if len(filenameLists) > 0 {
				cfg.FilenameLists = filenameLists
			}
			if noArchives {
				cfg.ScanArchives = false
			}
			if cmd.Flags().Changed("max-depth") {
				cfg.MaxDepth = maxDepth
			}
			if maxExpansion != "" {
				cfg.MaxExpansion = maxExpansion
			}
			if scanEvtx {
				cfg.ScanEvtx = true
			}
			if scanRegistry {
				cfg.ScanRegistry = true
			}
			if levenshtein {
				cfg.Levenshtein = true
			}
			if len(algorithms) > 0 {
				cfg.HashAlgorithms = algorithms
			}
			if len(exclude) > 0 {
				cfg.Exclude = exclude
			}
			if reportFormat != "" {
				cfg.ReportFormat = reportFormat
			}
			if outputFile != "" {
				cfg.OutputFile = outputFile
			}

			if err := cfg.Validate(); err != nil {
				fmt.Printf("\n  %s✗ Invalid parameter:%s %s\n\n", colorRed, colorReset, err.Error())
				return err
			}
			if cfg.RulesPath == "" && len(cfg.HashLists) == 0 && len(cfg.FilenameLists) == 0 && !cfg.Levenshtein {
				err := fmt.Errorf("no detection sources: provide --rules, --hash-list, --filename-list or --levenshtein")
				fmt.Printf("\n  %s✗ %s%s\n\n", colorRed, err.Error(), colorReset)
				return err
			}

			printScanHeader(cfg)

			writer, err := report.NewWriter(cfg, logger)
			if err != nil {
				logger.Error("Failed to create report writer", zap.Error(err))
				return err
			}

			eng, err := engine.New(cfg, logger, engine.Handlers{
				OnFinding: func(f *models.Finding) {
					if werr := writer.WriteFinding(f); werr != nil {
						logger.Warn("Failed to write finding", zap.Error(werr))
					}
				},
				OnError: func(se *models.ScanError) {
					if werr := writer.WriteError(se); werr != nil {
						logger.Warn("Failed to write scan error", zap.Error(werr))
					}
				},
			})
			if err != nil {
				logger.Error("Failed to load catalog", zap.Error(err))
				return err
			}

			// SIGINT/SIGTERM cancel the scan; findings already produced
			// are still reported.
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := eng.Run(ctx)
			if err != nil {
				logger.Error("Scan failed", zap.Error(err))
				return err
			}

			if err := writer.Close(summary); err != nil {
				logger.Error("Failed to finalize report", zap.Error(err))
				return err
			}

			if summary.FindingsTotal > 0 {
				*exitCode = exitFindings
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "Number of worker goroutines (default: CPU cores)")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "Signature ruleset file or directory")
	cmd.Flags().StringSliceVar(&hashLists, "hash-list", nil, "Known-bad digest list file (repeatable)")
	cmd.Flags().StringSliceVar(&filenameLists, "filename-list", nil, "Filename pattern file (repeatable)")
	cmd.Flags().BoolVar(&noArchives, "no-archives", false, "Do not expand archive contents")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Maximum archive nesting depth (default: 8)")
	cmd.Flags().StringVar(&maxExpansion, "max-expansion", "", "Decompressed-size budget per container (default: 512M)")
	cmd.Flags().BoolVar(&scanEvtx, "evtx", false, "Carve and scan Windows event log records")
	cmd.Flags().BoolVar(&scanRegistry, "reg", false, "Carve and scan Windows registry hive values")
	cmd.Flags().BoolVar(&levenshtein, "levenshtein", false, "Flag filenames resembling well-known system binaries")
	cmd.Flags().StringSliceVar(&algorithms, "hash-algorithms", nil, "Digests to compute: md5, sha1, sha256, blake3")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Directory names to exclude (comma-separated)")
	cmd.Flags().StringVarP(&reportFormat, "report", "r", "", "Report format: text, json, csv (default: text)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Write structured logs to a file instead of stderr")

	return cmd
}

// printScanHeader prints scan parameters before the run starts
func printScanHeader(cfg *config.Config) {
	printBanner()
	fmt.Printf("  %sScanning:%s  %s\n", colorGray, colorReset, cfg.Path)
	fmt.Printf("  %sWorkers:%s   %d\n", colorGray, colorReset, cfg.WorkerCount())

	var sources []string
	if cfg.RulesPath != "" {
		sources = append(sources, "rules")
	}
	if len(cfg.HashLists) > 0 {
		sources = append(sources, "hashes")
	}
	if len(cfg.FilenameLists) > 0 {
		sources = append(sources, "filenames")
	}
	fmt.Printf("  %sCatalog:%s   %s\n", colorGray, colorReset, strings.Join(sources, ", "))

	var extras []string
	if cfg.ScanArchives {
		extras = append(extras, "archives")
	}
	if cfg.ScanEvtx {
		extras = append(extras, "evtx")
	}
	if cfg.ScanRegistry {
		extras = append(extras, "registry")
	}
	if cfg.Levenshtein {
		extras = append(extras, "levenshtein")
	}
	if len(extras) > 0 {
		fmt.Printf("  %sExpand:%s    %s\n", colorGray, colorReset, strings.Join(extras, ", "))
	}
	fmt.Println()
}
