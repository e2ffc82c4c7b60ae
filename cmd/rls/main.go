// Command rls is the Rust language service daemon: it wires the
// Virtual File System, Semantic Index, Build Plan, Build Queue,
// Compiler Driver, Post-Build Processor, and Request Dispatcher
// together and speaks the subset of the Language Server Protocol
// described in spec.md §6 over framed stdio. A loopback debug HTTP
// surface and a secondary framed-JSON listener (for `cmd/rlsctl` and
// manual smoke tests) run alongside it.
//
// Flag parsing and command dispatch follow the teacher's
// `cmd/iter-service/main.go` shape (a global --config flag, a small
// set of subcommands, "serve" as the default).
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rls/internal/analysisdb"
	"github.com/ternarybob/rls/internal/api"
	"github.com/ternarybob/rls/internal/buildplan"
	"github.com/ternarybob/rls/internal/buildqueue"
	"github.com/ternarybob/rls/internal/compiler"
	"github.com/ternarybob/rls/internal/config"
	"github.com/ternarybob/rls/internal/dispatch"
	"github.com/ternarybob/rls/internal/handlers"
	"github.com/ternarybob/rls/internal/jobs"
	"github.com/ternarybob/rls/internal/logger"
	"github.com/ternarybob/rls/internal/postbuild"
	"github.com/ternarybob/rls/internal/protocol"
	"github.com/ternarybob/rls/internal/rustconfig"
	"github.com/ternarybob/rls/internal/semindex"
	"github.com/ternarybob/rls/internal/service"
	"github.com/ternarybob/rls/internal/vfs"
)

var version = "dev"

var configFlagPath string

func main() {
	args := os.Args[1:]
	command := ""
	cmdArgs := []string{}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "--config="):
			configFlagPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--config" && i+1 < len(args):
			configFlagPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "-"):
			// unknown flag, ignored here; subcommand flag sets parse their own
		case command == "":
			command = arg
		default:
			cmdArgs = append(cmdArgs, arg)
		}
	}

	if command == "" {
		command = "serve"
	}

	var err error
	switch command {
	case "serve", "start":
		err = cmdServe(cmdArgs)
	case "version", "-v", "--version":
		fmt.Printf("rls version %s\n", version)
	case "status":
		err = cmdStatus()
	case "stop":
		err = cmdStop()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`rls - Rust language service daemon

Usage:
  rls [flags] [command]

Commands:
  serve      Run the daemon on framed stdio (default)
  status     Show whether a daemon is running
  stop       Stop a running daemon
  version    Show version information
  help       Show this help

Flags:
  --config PATH   Path to configuration file (default: platform data dir)

Environment:
  RLS_CONFIG        Path to configuration file (alternative to --config)
  RLS_LISTEN_ADDRESS Override the rlsctl JSON-RPC listen address`)
}

func getConfigPath() string {
	if configFlagPath != "" {
		return configFlagPath
	}
	if envPath := os.Getenv("RLS_CONFIG"); envPath != "" {
		return envPath
	}
	return config.DefaultDataDir() + string(os.PathSeparator) + "rls.toml"
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	// The primary transport is framed stdio: stdout carries nothing
	// but JSON-RPC messages, so console logging is never an option
	// here regardless of what the config file requests.
	cfg.Logging.Output = config.StringSlice{"file"}
	return cfg, nil
}

func cmdStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if running, pid := service.IsRunning(cfg); running {
		fmt.Printf("rls: running (PID %d)\n", pid)
	} else {
		fmt.Println("rls: stopped")
	}
	return nil
}

func cmdStop() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if running, _ := service.IsRunning(cfg); !running {
		fmt.Println("rls: not running")
		return nil
	}
	if err := service.StopRunning(cfg); err != nil {
		return err
	}
	fmt.Println("rls: stopped")
	return nil
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Parse(args)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	log := logger.SetupLogger(cfg)
	defer logger.Stop()
	log.Info().Str("version", version).Msg("starting rls")

	v := vfs.New()
	idx := semindex.New(handlers.NewLoader(v), log)
	db := analysisdb.New()
	reg := jobs.NewRegistry()
	cargoPlan := buildplan.NewCargoPlan()
	graph := cargoPlan.Graph
	driver := compiler.New(overlayLoader{v: v}, nil)

	srv := &server{vfs: v, idx: idx, log: log, cfg: rustconfig.Default()}
	srv.writer = protocol.NewFramedWriter(os.Stdout)

	pb := postbuild.New(db, func(file string, diags []postbuild.Diagnostic) {
		wire := make([]wireDiagnostic, 0, len(diags))
		for _, d := range diags {
			wire = append(wire, diagnosticToWire(d))
		}
		srv.publishDiagnostics(pathToURI(file), wire)
	}, log)
	go pb.Run()
	defer pb.Stop()

	runner := newBuildRunner(graph, driver, pb, log)
	queue := buildqueue.New(runner, reg, log)
	go queue.Run()
	defer queue.Stop()
	srv.queue = queue

	dispatcher := dispatch.New(log)
	srv.h = handlers.New(v, idx, queue, reg, dispatcher, srv.getConfig, os.Getpid(), log)
	register(dispatcher, srv)

	debugAPI := api.NewServer(reg, queue, graph, v)
	daemon := service.NewDaemon(cfg, log)
	if cfg.Debug.Enabled {
		if err := daemon.Start(debugAPI.Handler()); err != nil {
			log.Warn().Err(err).Msg("could not start debug HTTP surface")
		} else {
			defer daemon.Stop()
		}
	}

	if cfg.Service.ListenAddress != "" {
		if ln, err := net.Listen("tcp", cfg.Service.ListenAddress); err != nil {
			log.Warn().Err(err).Str("address", cfg.Service.ListenAddress).Msg("could not start rlsctl listener")
		} else {
			log.Info().Str("address", cfg.Service.ListenAddress).Msg("rlsctl listener ready")
			go serveLoopback(ln, dispatcher, log)
			defer ln.Close()
		}
	}

	reader := protocol.NewFramedReader(os.Stdin)
	code := dispatcher.Serve(reader, srv.writer)
	log.Info().Int("code", code).Msg("rls exiting")
	os.Exit(code)
	return nil
}

// serveLoopback accepts connections on the secondary framed-JSON
// transport and runs each through the same dispatcher instance as the
// primary stdio connection, so `cmd/rlsctl` observes the one true
// lifecycle and action-context state rather than a parallel session.
func serveLoopback(ln net.Listener, dispatcher *dispatch.Server, log arbor.ILogger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go func() {
			defer conn.Close()
			dispatcher.Serve(protocol.NewFramedReader(conn), protocol.NewFramedWriter(conn))
		}()
	}
}
