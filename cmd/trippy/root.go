package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dtrace/trippy/internal/channel"
	"github.com/dtrace/trippy/internal/config"
	"github.com/dtrace/trippy/internal/privilege"
	"github.com/dtrace/trippy/internal/report"
	"github.com/dtrace/trippy/internal/resolve"
	"github.com/dtrace/trippy/internal/tracer"
	"github.com/dtrace/trippy/internal/tui"
	"github.com/dtrace/trippy/internal/wire"
)

var (
	// Flags
	useUDP     bool
	useTCP     bool
	firstTTL   int
	maxTTL     int
	maxInflight int
	readTimeout time.Duration
	minRound   time.Duration
	maxRound   time.Duration
	grace      time.Duration
	destPort   int
	tuiMode    bool
	jsonOutput bool
	csvOutput  bool
	verbose    bool
	noColor    bool
	noResolve  bool

	// Config file
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "trippy [flags] <target>",
	Short: "Interactive network path diagnostic tool",
	Long: `Trippy - an mtr-style interactive network path diagnostic tool

Trippy traces the route packets take to reach a destination host in
continuous rounds, showing per-hop loss and RTT statistics that refine
as more rounds complete.

Features:
  • ICMP (default), UDP, and TCP SYN probe protocols
  • Continuous round-based probing, not a one-shot trace
  • Interactive TUI mode
  • Multiple batch output formats: text, table, JSON, CSV
  • Configuration file support (~/.config/trippy/config.yaml)

Examples:
  trippy google.com              Interactive TUI trace using ICMP
  trippy -U google.com           Use UDP probes
  trippy -T --port 443 host      TCP SYN probe to port 443
  trippy --json google.com       One-shot JSON snapshot
  trippy config --init           Create default config file`,
	Args:              cobra.ExactArgs(1),
	PersistentPreRunE: loadConfig,
	RunE:              runTrace,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ~/.config/trippy/config.yaml)")

	rootCmd.Flags().BoolVarP(&useUDP, "udp", "U", false, "Use UDP probes")
	rootCmd.Flags().BoolVarP(&useTCP, "tcp", "T", false, "Use TCP SYN probes")

	rootCmd.Flags().IntVarP(&firstTTL, "first-ttl", "f", 0, "Starting TTL")
	rootCmd.Flags().IntVarP(&maxTTL, "max-ttl", "m", 0, "Maximum TTL")
	rootCmd.Flags().IntVar(&maxInflight, "max-inflight", 0, "Maximum in-flight probes per round")
	rootCmd.Flags().DurationVarP(&readTimeout, "read-timeout", "w", 0, "Per-poll socket read timeout")
	rootCmd.Flags().DurationVar(&minRound, "min-round", 0, "Minimum round duration")
	rootCmd.Flags().DurationVar(&maxRound, "max-round", 0, "Maximum round duration")
	rootCmd.Flags().DurationVar(&grace, "grace", 0, "Grace period after the destination first replies")
	rootCmd.Flags().IntVarP(&destPort, "port", "p", 0, "Destination port (UDP/TCP)")

	rootCmd.Flags().BoolVarP(&tuiMode, "tui", "t", false, "Interactive TUI mode")
	rootCmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Single JSON snapshot after Ctrl-C")
	rootCmd.Flags().BoolVar(&csvOutput, "csv", false, "Single CSV snapshot after Ctrl-C")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Table-style snapshot after Ctrl-C")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.Flags().BoolVar(&noResolve, "no-resolve", false, "Disable reverse DNS lookups")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig loads configuration from --config or the default search
// paths and applies its defaults to unset flags. When no config file is
// found, the built-in defaults are used and no file is written; only when
// loading an existing file fails are the built-in defaults used and saved
// to the user config path.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error

	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		cfg, err = config.Load()
		if err != nil {
			cfg = config.DefaultConfig()
			if saveErr := cfg.Save(); saveErr == nil {
				fmt.Fprintf(os.Stderr, "Created default config: %s\n", config.GetConfigPath())
			}
		}
	}

	applyConfigDefaults(cmd)
	return nil
}

// applyConfigDefaults fills in flags the user did not explicitly set
// from cfg.Defaults.
func applyConfigDefaults(cmd *cobra.Command) {
	if cfg == nil {
		return
	}
	d := cfg.Defaults

	if !cmd.Flags().Changed("tui") && d.TUI {
		tuiMode = true
	}
	if !cmd.Flags().Changed("verbose") && d.Verbose {
		verbose = true
	}
	if !cmd.Flags().Changed("json") && d.JSON {
		jsonOutput = true
	}
	if !cmd.Flags().Changed("csv") && d.CSV {
		csvOutput = true
	}
	if !cmd.Flags().Changed("no-color") && d.NoColor {
		noColor = true
	}

	if !cmd.Flags().Changed("udp") && !cmd.Flags().Changed("tcp") {
		switch d.ProbeMethod {
		case "udp":
			useUDP = true
		case "tcp":
			useTCP = true
		}
	}

	if !cmd.Flags().Changed("first-ttl") {
		firstTTL = firstNonZeroInt(d.FirstTTL, 1)
	}
	if !cmd.Flags().Changed("max-ttl") {
		maxTTL = firstNonZeroInt(d.MaxTTL, 30)
	}
	if !cmd.Flags().Changed("max-inflight") {
		maxInflight = firstNonZeroInt(d.MaxInflight, 8)
	}
	if !cmd.Flags().Changed("read-timeout") {
		readTimeout = firstNonZeroDuration(d.ReadTimeout, 50*time.Millisecond)
	}
	if !cmd.Flags().Changed("min-round") {
		minRound = firstNonZeroDuration(d.MinRoundDuration, time.Second)
	}
	if !cmd.Flags().Changed("max-round") {
		maxRound = firstNonZeroDuration(d.MaxRoundDuration, 5*time.Second)
	}
	if !cmd.Flags().Changed("grace") {
		grace = firstNonZeroDuration(d.GraceDuration, 200*time.Millisecond)
	}
	if !cmd.Flags().Changed("port") {
		destPort = firstNonZeroInt(d.DestPort, 33434)
	}

	if !cmd.Flags().Changed("no-resolve") && !d.Resolve.Enabled {
		noResolve = true
	}
}

func firstNonZeroInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func firstNonZeroDuration(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Trippy %s\n", version)
		fmt.Printf("  Commit: %s\n", commit)
		fmt.Printf("  Built:  %s\n", date)
		fmt.Printf("  Config: %s\n", config.GetConfigPath())
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage Trippy's configuration file.

Commands:
  trippy config --init     Create default config file
  trippy config --show     Show current configuration
  trippy config --path     Show config file path`,
	RunE: runConfig,
}

var (
	configInit bool
	configShow bool
	configPath bool
)

func init() {
	configCmd.Flags().BoolVar(&configInit, "init", false, "Create default config file")
	configCmd.Flags().BoolVar(&configShow, "show", false, "Show current configuration")
	configCmd.Flags().BoolVar(&configPath, "path", false, "Show config file path")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if configPath {
		fmt.Println(config.GetConfigPath())
		return nil
	}

	if configInit {
		path := config.GetConfigPath()
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
		c := config.DefaultConfig()
		if err := c.Save(); err != nil {
			return fmt.Errorf("failed to create config: %w", err)
		}
		fmt.Printf("Created config file: %s\n", path)
		return nil
	}

	if configShow {
		fmt.Println(config.GenerateExample())
		return nil
	}

	return cmd.Help()
}

func runTrace(cmd *cobra.Command, args []string) error {
	target := args[0]

	if cfg != nil && cfg.Aliases != nil {
		if alias, ok := cfg.Aliases[target]; ok {
			target = alias
		}
	}

	if err := privilege.Check(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dest, err := resolveTarget(ctx, target)
	if err != nil {
		return err
	}

	proto := wire.ProtoICMP
	switch {
	case useUDP:
		proto = wire.ProtoUDP
	case useTCP:
		proto = wire.ProtoTCP
	}

	tcfg := tracer.DefaultConfig()
	tcfg.Dest = dest
	tcfg.Protocol = proto
	tcfg.FirstTTL = uint8(firstTTL)
	tcfg.MaxTTL = uint8(maxTTL)
	tcfg.MaxInflight = uint8(maxInflight)
	tcfg.ReadTimeout = readTimeout
	tcfg.MinRoundDuration = minRound
	tcfg.MaxRoundDuration = maxRound
	tcfg.GraceDuration = grace
	if destPort > 0 {
		tcfg.DestPort = uint16(destPort)
	}
	if cfg != nil {
		d := cfg.Defaults
		if d.PacketSize > 0 {
			tcfg.PacketSize = uint16(d.PacketSize)
		}
		if d.MaxUnknownHops > 0 {
			tcfg.MaxUnknownHops = uint8(d.MaxUnknownHops)
		}
		if d.SourcePort > 0 {
			tcfg.SourcePort = uint16(d.SourcePort)
		}
	}

	if err := tcfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ch, err := channel.NewRawChannel(proto)
	if err != nil {
		return fmt.Errorf("failed to open sockets: %w", err)
	}

	tr := tracer.New(tcfg, ch)
	defer tr.Close()

	resolver := buildResolver()

	if tuiMode {
		return tui.Run(target, tr, resolver, 250*time.Millisecond)
	}

	return runBatch(runCtx, tr, target, resolver)
}

// runBatch drives the tracer until the user interrupts it (Ctrl-C or
// SIGTERM, delivered as ctx's cancellation) or it exits on its
// own, streaming text output as rounds complete unless a structured
// format was requested.
func runBatch(ctx context.Context, tr *tracer.Tracer, target string, resolver resolve.Resolver) error {
	reportConfig := report.Config{Colors: !noColor, Resolver: resolver}

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- tr.Run(ctx)
	}()

	if !jsonOutput && !csvOutput && !verbose {
		fmt.Printf("trippy to %s\n\n", target)
		textFormatter := report.NewTextFormatter(reportConfig)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		lastRound := -1
		for {
			select {
			case err := <-runErrCh:
				fmt.Println()
				snap := tr.Snapshot()
				if snap.IsDone {
					fmt.Printf("Trace complete after %d rounds\n", snap.RoundCount)
				} else {
					fmt.Printf("Trace incomplete after %d rounds\n", snap.RoundCount)
				}
				return err
			case <-ticker.C:
				snap := tr.Snapshot()
				if snap.RoundCount != lastRound {
					lastRound = snap.RoundCount
					for i := range snap.Hops {
						fmt.Print(textFormatter.FormatHop(&snap.Hops[i]))
					}
				}
			}
		}
	}

	err := <-runErrCh

	var format report.Format
	switch {
	case jsonOutput:
		format = report.FormatJSON
	case csvOutput:
		format = report.FormatCSV
	default:
		format = report.FormatTable
	}

	writer := report.NewWriterWithFormatter(report.NewFormatter(format, reportConfig), os.Stdout)
	if werr := writer.Write(target, tr.Snapshot()); werr != nil {
		return werr
	}
	return err
}

// resolveTarget resolves a hostname or IP string to a net.IP, preferring
// IPv4 since the engine's Channel only supports IPv4 (spec.md §4).
func resolveTarget(ctx context.Context, target string) (net.IP, error) {
	if ip := net.ParseIP(target); ip != nil {
		return ip, nil
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", target, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no IPv4 addresses found for %s", target)
	}
	return ips[0], nil
}

func buildResolver() resolve.Resolver {
	if cfg == nil || noResolve || !cfg.Defaults.Resolve.Enabled {
		return resolve.Noop{}
	}
	method := resolve.ParseMethod(cfg.Defaults.Resolve.Method)
	timeout := cfg.Defaults.Resolve.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return resolve.New(method, timeout)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets version information for the CLI.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}
