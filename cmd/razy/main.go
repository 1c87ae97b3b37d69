package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/razy-dev/razy/internal/bridge"
	"github.com/razy-dev/razy/internal/config"
	"github.com/razy-dev/razy/internal/distributor"
	"github.com/razy-dev/razy/internal/logging"
	"github.com/razy-dev/razy/internal/server"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/razy.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validateOnly := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Razy runtime %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// Load configuration
	loader := config.NewLoader()
	cfg, err := loader.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *validateOnly {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	// Initialize structured logger
	logger, err := logging.NewWithConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	// Subprocess bridge child: boot, answer one command on stdout, exit.
	if args := flag.Args(); len(args) > 0 && args[0] == "bridge" {
		os.Exit(runBridgeChild(cfg, args[1:]))
	}

	logging.Info("Starting Razy runtime",
		zap.String("version", version),
		zap.String("config", *configPath),
		zap.Int("distributors", len(cfg.Distributors)),
	)

	srv, err := server.NewServer(cfg, *configPath)
	if err != nil {
		logging.Error("Failed to assemble runtime", zap.Error(err))
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		logging.Error("Server error", zap.Error(err))
		os.Exit(1)
	}
}

// runBridgeChild serves one bridge call: argv is
// <target@tag> <module> <command> <args-json | "-">. The response envelope
// goes to stdout; logs stay on stderr.
func runBridgeChild(cfg *config.Config, args []string) int {
	fail := func(format string, fmtArgs ...any) int {
		resp := bridge.Response{
			Success:   false,
			Error:     fmt.Sprintf(format, fmtArgs...),
			Code:      bridge.CodeInternalError,
			Timestamp: time.Now().Unix(),
		}
		json.NewEncoder(os.Stdout).Encode(resp)
		return 1
	}

	if len(args) != 4 {
		return fail("usage: razy bridge <target@tag> <module> <command> <args-json>")
	}

	target, err := distributor.ParseID(args[0])
	if err != nil {
		return fail("bad target: %v", err)
	}

	source := distributor.ID{Code: "local", Tag: distributor.DefaultTag}
	if env := os.Getenv(bridge.CallerEnv); env != "" {
		if id, err := distributor.ParseID(env); err == nil {
			source = id
		}
	}

	callArgs, err := bridge.ReadChildArgs(args[3], os.Stdin)
	if err != nil {
		return fail("%v", err)
	}

	srv, err := server.NewServer(cfg, "")
	if err != nil {
		return fail("boot: %v", err)
	}
	defer srv.Shutdown(5 * time.Second)

	resp := srv.ExecuteBridge(context.Background(), source, target, args[1], args[2], callArgs)
	json.NewEncoder(os.Stdout).Encode(resp)
	return 0
}
