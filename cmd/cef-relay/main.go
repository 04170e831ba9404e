// Package main is the entry point for the cef-relay service.
//
// cef-relay listens for syslog records and forwards them as CEF. In ingest
// mode raw PAN-OS GlobalProtect records are converted to CEF with a
// computed severity; in rewrite mode existing CEF has its severity
// replaced.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cef-relay/internal/config"
	"cef-relay/internal/ingest"
	"cef-relay/internal/ingest/cef"
	"cef-relay/internal/logging"
	"cef-relay/internal/pipeline"
	"cef-relay/internal/severity"
)

var version = "dev"

// options holds command-line flags. Flags left unset do not override the
// configuration file.
type options struct {
	configPath     string
	mode           string
	listenIP       string
	listenPort     int
	forwardIP      string
	forwardPort    int
	inputProtocol  string
	outputProtocol string
	verbose        bool
	showVersion    bool

	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("cef-relay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "Path to config file (default $"+config.PathEnv+" or "+config.DefaultPath+")")
	fs.StringVar(&o.mode, "mode", "", "Relay mode: ingest or rewrite")
	fs.StringVar(&o.listenIP, "listen-ip", "", "IP address to listen on")
	fs.IntVar(&o.listenPort, "listen-port", 0, "Port to listen on")
	fs.StringVar(&o.forwardIP, "forward-ip", "", "IP address to forward to")
	fs.IntVar(&o.forwardPort, "forward-port", 0, "Port to forward to")
	fs.StringVar(&o.inputProtocol, "input-protocol", "", "Input protocol: udp, tcp or dtls")
	fs.StringVar(&o.outputProtocol, "output-protocol", "", "Output protocol: udp, tcp, dtls, kafka or redis")
	fs.BoolVar(&o.verbose, "verbose", false, "Enable debug logging")
	fs.BoolVar(&o.showVersion, "version", false, "Show version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// apply copies the flags given on the command line into cfg.
func (o *options) apply(cfg *config.Config) {
	if o.set["mode"] {
		cfg.Mode = o.mode
	}
	if o.set["listen-ip"] {
		cfg.Input.ListenIP = o.listenIP
	}
	if o.set["listen-port"] {
		cfg.Input.ListenPort = o.listenPort
	}
	if o.set["forward-ip"] {
		cfg.Output.TargetIP = o.forwardIP
	}
	if o.set["forward-port"] {
		cfg.Output.TargetPort = o.forwardPort
	}
	if o.set["input-protocol"] {
		cfg.Input.Protocol = o.inputProtocol
	}
	if o.set["output-protocol"] {
		cfg.Output.Protocol = o.outputProtocol
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run starts the relay and blocks until SIGINT or SIGTERM. It returns the
// process exit code: 0 after a clean shutdown, 1 when startup fails.
func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(stderr, "cef-relay: %v\n", err)
		return 1
	}

	if opts.showVersion {
		fmt.Fprintf(stdout, "cef-relay %s\n", version)
		return 0
	}

	// Setup structured logging; replaced once the config is known.
	logger := slog.New(slog.NewJSONHandler(stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}
	opts.apply(cfg)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		return 1
	}

	logger, err = logging.New(stdout, cfg.Logging)
	if err != nil {
		slog.Error("invalid logging config", "error", err)
		return 1
	}
	slog.SetDefault(logger)

	slog.Info("configuration loaded",
		"version", version,
		"path", cfg.Path,
		"mode", cfg.Mode,
		"input", cfg.Input.Protocol,
		"listen", cfg.ListenAddr(),
		"output", cfg.Output.Protocol,
		"severity_order", string(cfg.ClassifierOrder()),
		"default_severity", cfg.CEF.DefaultSeverity,
	)

	if cfg.PrivilegedPort() {
		slog.Warn("listen port below 1024 requires root or CAP_NET_BIND_SERVICE",
			"port", cfg.Input.ListenPort,
		)
	}

	// Initialize components
	processor, err := newProcessor(cfg, logger)
	if err != nil {
		slog.Error("failed to build processor", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	receiver, err := ingest.NewReceiver(cfg.InputConfig())
	if err != nil {
		slog.Error("failed to start receiver", "error", err, "listen", cfg.ListenAddr())
		return 1
	}

	sender, err := ingest.NewSender(cfg.OutputConfig(), logger)
	if err != nil {
		receiver.Close()
		slog.Error("failed to connect sender", "error", err, "output", cfg.Output.Protocol)
		return 1
	}
	defer sender.Close()

	engine := ingest.NewEngine(cfg.EngineConfig(), receiver, processor, sender, logger)
	if err := engine.Run(ctx); err != nil {
		slog.Error("relay failed", "error", err)
		return 1
	}

	slog.Info("shutdown complete")
	return 0
}

// newProcessor builds the record processor for the configured mode.
func newProcessor(cfg *config.Config, logger *slog.Logger) (ingest.Processor, error) {
	classifier, err := severity.New(cfg.ClassifierOrder(), cfg.DefaultLevel())
	if err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case config.ModeRewrite:
		return pipeline.NewRewriter(cef.NewParser(cfg.ParserConfig()), classifier, logger), nil
	default:
		return pipeline.NewIngest(classifier, cef.NewEncoder(cfg.EncoderConfig()), logger), nil
	}
}
