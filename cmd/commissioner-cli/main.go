// Command commissioner-cli is an interactive external Thread
// Commissioner.
//
// It authenticates to a Thread network through a Border Agent,
// petitions for the exclusive commissioner role, admits joiners, and
// manages the network's operational datasets, including the Thread 1.2
// Commercial Commissioning Mode extensions.
//
// Usage:
//
//	commissioner-cli <config-file>
//	commissioner-cli -h|--help
//	commissioner-cli -v|--version
//
// The configuration file is a strict JSON document; see the Config type
// in pkg/commissioner. Once started, type "help" at the prompt for the
// command list.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/meshcop/commissioner-go/cmd/commissioner-cli/interactive"
	"github.com/meshcop/commissioner-go/pkg/commissioner"
	commlog "github.com/meshcop/commissioner-go/pkg/log"
	"github.com/meshcop/commissioner-go/pkg/transport"
	"github.com/meshcop/commissioner-go/pkg/version"
)

func printUsage(program string) {
	fmt.Printf("usage:\n    %s <config-file>\n", program)
}

// activeCommissioner is the abort target of the signal handler. Stored
// at startup and cleared at shutdown; the handler dereferences through
// the atomic slot.
var activeCommissioner atomic.Pointer[commissioner.Commissioner]

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) < 2 || strings.ToLower(args[1]) == "-h" || strings.ToLower(args[1]) == "--help" {
		printUsage(args[0])
		return 0
	}
	if strings.ToLower(args[1]) == "-v" || strings.ToLower(args[1]) == "--version" {
		fmt.Println(version.Version)
		return 0
	}

	cfg, err := commissioner.LoadConfig(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "start commissioner-cli failed: %v\n", err)
		return 1
	}

	logger, logCloser, err := commlog.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start commissioner-cli failed: %v\n", err)
		return 1
	}
	defer logCloser.Close()

	creds, err := cfg.LoadCredentials()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start commissioner-cli failed: %v\n", err)
		return 1
	}

	comm, err := commissioner.New(cfg, transport.NewDialer(creds, logger), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start commissioner-cli failed: %v\n", err)
		return 1
	}
	activeCommissioner.Store(comm)
	defer activeCommissioner.Store(nil)

	// SIGINT aborts the in-flight command; shutdown resigns gracefully.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	go func() {
		for range sigCh {
			if c := activeCommissioner.Load(); c != nil {
				c.AbortRequests()
			}
		}
	}()

	interpreter, err := interactive.New(comm, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start commissioner-cli failed: %v\n", err)
		return 1
	}
	interpreter.Run()

	signal.Stop(sigCh)
	close(sigCh)

	if comm.IsActive() {
		comm.Stop()
	}
	return 0
}
