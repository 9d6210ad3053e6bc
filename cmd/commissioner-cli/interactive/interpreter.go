// Package interactive provides the interactive command-line interface
// for commissioner-cli.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/chzyer/readline"

	"github.com/meshcop/commissioner-go/pkg/commissioner"
	"github.com/meshcop/commissioner-go/pkg/discovery"
	"github.com/meshcop/commissioner-go/pkg/security"
)

// Interpreter drives the commissioner from an interactive prompt.
type Interpreter struct {
	comm    *commissioner.Commissioner
	browser discovery.Browser
	logger  log.Interface
	rl      *readline.Instance

	// agents caches the last discovery round for "start <index>".
	agents []discovery.BorderAgent
}

// New creates the interpreter with a readline prompt.
func New(comm *commissioner.Commissioner, logger log.Interface) (*Interpreter, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "commissioner> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Interpreter{
		comm:    comm,
		browser: discovery.NewMDNSBrowser(discovery.BrowserConfig{}),
		logger:  logger,
		rl:      rl,
	}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
func (i *Interpreter) Stdout() io.Writer {
	return i.rl.Stdout()
}

// Run starts the interactive command loop and blocks until exit.
func (i *Interpreter) Run() {
	defer i.rl.Close()

	i.printHelp()

	for {
		line, err := i.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(i.rl.Stdout(), "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			i.printHelp()

		case "discover":
			i.cmdDiscover()

		case "start":
			i.cmdStart(args)

		case "stop":
			i.cmdStop()

		case "active":
			fmt.Printf("%v\n", i.comm.IsActive())

		case "sessionid":
			i.cmdSessionId()

		case "locator":
			i.cmdLocator()

		case "joiner":
			i.cmdJoiner(args)

		case "steering":
			i.cmdSteering(args)

		case "joinerport":
			i.cmdJoinerPort(args)

		case "dataset":
			i.cmdDataset(args)

		case "channel":
			i.cmdChannel(args)

		case "networkname":
			i.cmdNetworkName(args)

		case "panid":
			i.cmdPanId(args)

		case "extpanid":
			i.cmdExtPanId(args)

		case "masterkey":
			i.cmdMasterKey(args)

		case "pskc":
			i.cmdPSKc(args)

		case "mlprefix":
			i.cmdMeshLocalPrefix(args)

		case "securitypolicy":
			i.cmdSecurityPolicy()

		case "announce":
			i.cmdAnnounce(args)

		case "energy":
			i.cmdEnergy(args)

		case "mlr":
			i.cmdMlr(args)

		case "bbrdataset":
			i.cmdBbrDataset(args)

		case "token":
			i.cmdToken(args)

		case "reenroll":
			i.cmdCcmCommand(args, "reenroll", i.comm.Reenroll)

		case "domainreset":
			i.cmdCcmCommand(args, "domainreset", i.comm.DomainReset)

		case "migrate":
			i.cmdMigrate(args)

		case "network":
			i.cmdNetwork(args)

		case "quit", "exit", "q":
			fmt.Println("Exiting...")
			return

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (i *Interpreter) printHelp() {
	fmt.Println(`
Commissioner Commands:
  Session:
    discover                             - Discover Border Agents via mDNS
    start <addr> <port> | start <index>  - Petition through a Border Agent
    stop                                 - Resign the commissioner role
    active                               - Show whether the session is active
    sessionid                            - Show the assigned session id
    locator                              - Show the Border Agent locator

  Joiners:
    joiner enable <type> <eui64> [pskd] [url]  - Enable one joiner
    joiner enableall <type> [pskd] [url]       - Enable all joiners of a type
    joiner disable <type> <eui64>              - Disable one joiner
    joiner disableall <type>                   - Disable all joiners of a type
    joiner commissioned <type> <eui64>         - Show commissioning state
    steering <type>                            - Show steering data
    joinerport get <type> | set <type> <port>  - Joiner UDP port
    (types: meshcop, ae, nmkp)

  Datasets:
    dataset <active|pending|commissioner|bbr>  - Dump a cached dataset
    channel get | set <page> <number> <delay-ms>
    networkname get | set <name>
    panid get | set <panid> <delay-ms> | query <mask> <panid> <dst> | conflict <panid>
    extpanid get | set <hex8>
    masterkey get | set <hex16> <delay-ms>
    pskc get | set <hex16>
    mlprefix get | set <hex8> <delay-ms>
    securitypolicy

  Network commands:
    announce <mask> <count> <period-ms> <dst>
    energy scan <mask> <count> <period> <duration> <dst>
    energy report [addr]
    mlr <addr> [addr...] <timeout-s>

  CCM:
    bbrdataset get | trihostname <name> | reghostname <name>
    token request <addr> <port> | set <token-file> <cert-file> | print
    reenroll <dst> | domainreset <dst> | migrate <dst> <network>

  General:
    network save <path> | pull
    help | quit`)
}

// cmdDiscover browses for Border Agents and caches the result.
func (i *Interpreter) cmdDiscover() {
	fmt.Println("Discovering Border Agents...")
	ctx, cancel := context.WithTimeout(context.Background(), discovery.BrowseTimeout)
	agents, err := i.browser.Discover(ctx)
	cancel()
	if err != nil {
		fmt.Printf("Discovery error: %v\n", err)
		return
	}
	if len(agents) == 0 {
		fmt.Println("No Border Agents found")
		return
	}

	i.agents = agents
	fmt.Printf("Found %d Border Agent(s):\n", len(agents))
	for idx, agent := range agents {
		fmt.Printf("  %d. %s [%s]:%d\n", idx+1, agent.NetworkName, agent.Addr, agent.Port)
		fmt.Printf("     instance: %s, mode: %s, vendor: %s %s\n",
			agent.InstanceName, agent.ConnectionMode(), agent.VendorName, agent.ModelName)
		if agent.DomainName != "" {
			fmt.Printf("     domain: %s\n", agent.DomainName)
		}
	}
}

// cmdStart petitions through an explicit address or a discovery index.
func (i *Interpreter) cmdStart(args []string) {
	var addr string
	var port uint16

	switch len(args) {
	case 1:
		index, err := strconv.Atoi(args[0])
		if err != nil || index < 1 || index > len(i.agents) {
			fmt.Println("Usage: start <addr> <port> (or start <index> after discover)")
			return
		}
		agent := i.agents[index-1]
		addr, port = agent.Addr, agent.Port
	case 2:
		p, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			fmt.Printf("Invalid port: %v\n", err)
			return
		}
		addr, port = args[0], uint16(p)
	default:
		fmt.Println("Usage: start <addr> <port> (or start <index> after discover)")
		return
	}

	fmt.Printf("Petitioning through [%s]:%d...\n", addr, port)
	existing, err := i.comm.Start(context.Background(), addr, port)
	if err != nil {
		if existing != "" {
			fmt.Printf("Petition rejected: commissioner %q holds the session\n", existing)
		} else {
			fmt.Printf("Petition failed: %v\n", err)
		}
		return
	}
	sessionId, _ := i.comm.SessionId()
	fmt.Printf("Commissioner active (session id %d)\n", sessionId)
}

func (i *Interpreter) cmdStop() {
	i.comm.Stop()
	fmt.Println("Commissioner stopped")
}

func (i *Interpreter) cmdSessionId() {
	sessionId, err := i.comm.SessionId()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(sessionId)
}

func (i *Interpreter) cmdLocator() {
	locator, err := i.comm.GetBorderAgentLocator()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("0x%04X\n", locator)
}

// parseJoinerType maps a command argument onto a JoinerType.
func parseJoinerType(s string) (commissioner.JoinerType, error) {
	switch strings.ToLower(s) {
	case "meshcop":
		return commissioner.JoinerTypeMeshCoP, nil
	case "ae":
		return commissioner.JoinerTypeAE, nil
	case "nmkp":
		return commissioner.JoinerTypeNMKP, nil
	default:
		return 0, fmt.Errorf("unknown joiner type %q (use: meshcop, ae, nmkp)", s)
	}
}

// parseEui64 accepts a hex EUI-64 with or without a 0x prefix.
func parseEui64(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	eui64, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid EUI-64 %q: %w", s, err)
	}
	return eui64, nil
}

func (i *Interpreter) cmdJoiner(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: joiner <enable|enableall|disable|disableall|commissioned> <type> ...")
		return
	}

	joinerType, err := parseJoinerType(args[1])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	ctx := context.Background()

	switch strings.ToLower(args[0]) {
	case "enable":
		if len(args) < 3 {
			fmt.Println("Usage: joiner enable <type> <eui64> [pskd] [provisioning-url]")
			return
		}
		eui64, err := parseEui64(args[2])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		pskd, url := "", ""
		if len(args) > 3 {
			pskd = args[3]
		}
		if len(args) > 4 {
			url = args[4]
		}
		if err := i.comm.EnableJoiner(ctx, joinerType, eui64, pskd, url); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Joiner enabled")

	case "enableall":
		pskd, url := "", ""
		if len(args) > 2 {
			pskd = args[2]
		}
		if len(args) > 3 {
			url = args[3]
		}
		if err := i.comm.EnableAllJoiners(ctx, joinerType, pskd, url); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("All joiners enabled")

	case "disable":
		if len(args) < 3 {
			fmt.Println("Usage: joiner disable <type> <eui64>")
			return
		}
		eui64, err := parseEui64(args[2])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if err := i.comm.DisableJoiner(ctx, joinerType, eui64); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Joiner disabled")

	case "disableall":
		if err := i.comm.DisableAllJoiners(ctx, joinerType); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("All joiners disabled")

	case "commissioned":
		if len(args) < 3 {
			fmt.Println("Usage: joiner commissioned <type> <eui64>")
			return
		}
		eui64, err := parseEui64(args[2])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("%v\n", i.comm.IsJoinerCommissioned(joinerType, eui64))

	default:
		fmt.Printf("Unknown joiner subcommand: %s\n", args[0])
	}
}

func (i *Interpreter) cmdSteering(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: steering <type>")
		return
	}
	joinerType, err := parseJoinerType(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	steering, err := i.comm.GetSteeringData(joinerType)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("%X\n", steering)
}

func (i *Interpreter) cmdJoinerPort(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: joinerport get <type> | joinerport set <type> <port>")
		return
	}
	joinerType, err := parseJoinerType(args[1])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	switch strings.ToLower(args[0]) {
	case "get":
		port, err := i.comm.GetJoinerUdpPort(joinerType)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println(port)
	case "set":
		if len(args) < 3 {
			fmt.Println("Usage: joinerport set <type> <port>")
			return
		}
		port, err := strconv.ParseUint(args[2], 10, 16)
		if err != nil {
			fmt.Printf("Invalid port: %v\n", err)
			return
		}
		if err := i.comm.SetJoinerUdpPort(context.Background(), joinerType, uint16(port)); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Done")
	default:
		fmt.Printf("Unknown joinerport subcommand: %s\n", args[0])
	}
}

func (i *Interpreter) cmdToken(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: token request <addr> <port> | token set <token-file> <cert-file> | token print")
		return
	}

	switch strings.ToLower(args[0]) {
	case "request":
		if len(args) < 3 {
			fmt.Println("Usage: token request <registrar-addr> <port>")
			return
		}
		port, err := strconv.ParseUint(args[2], 10, 16)
		if err != nil {
			fmt.Printf("Invalid port: %v\n", err)
			return
		}
		token, err := i.comm.RequestToken(context.Background(), args[1], uint16(port))
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("Token received (%d bytes)\n", len(token))

	case "set":
		if len(args) < 3 {
			fmt.Println("Usage: token set <token-file> <signer-cert-file>")
			return
		}
		token, err := security.ReadHexStringFile(args[1])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		cert, err := security.ReadPemFile(args[2])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if err := i.comm.SetToken(token, cert); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Token installed")

	case "print":
		token := i.comm.Token()
		if len(token) == 0 {
			fmt.Println("No token")
			return
		}
		fmt.Printf("%X\n", token)

	default:
		fmt.Printf("Unknown token subcommand: %s\n", args[0])
	}
}

func (i *Interpreter) cmdCcmCommand(args []string, name string, fn func(context.Context, string) error) {
	if len(args) < 1 {
		fmt.Printf("Usage: %s <dst-addr>\n", name)
		return
	}
	if err := fn(context.Background(), args[0]); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Done")
}

func (i *Interpreter) cmdMigrate(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: migrate <dst-addr> <designated-network>")
		return
	}
	if err := i.comm.Migrate(context.Background(), args[0], args[1]); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Done")
}

func (i *Interpreter) cmdNetwork(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: network save <path> | network pull")
		return
	}

	switch strings.ToLower(args[0]) {
	case "save":
		if len(args) < 2 {
			fmt.Println("Usage: network save <path>")
			return
		}
		if err := i.comm.SaveNetworkData(args[1]); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("Network data saved to %s\n", args[1])

	case "pull":
		if err := i.comm.PullNetworkData(context.Background()); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Network data refreshed")

	default:
		fmt.Printf("Unknown network subcommand: %s\n", args[0])
	}
}

// delayArg parses a delay-in-milliseconds argument.
func delayArg(s string) (time.Duration, error) {
	ms, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid delay %q: %w", s, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
