package interactive

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/meshcop/commissioner-go/pkg/dataset"
	"github.com/meshcop/commissioner-go/pkg/security"
)

// Dataset and field commands of the interpreter.

func (i *Interpreter) cmdDataset(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: dataset <active|pending|commissioner|bbr>")
		return
	}

	nd := i.comm.NetworkData()
	var doc any
	switch strings.ToLower(args[0]) {
	case "active":
		doc = nd.ActiveDataset
	case "pending":
		doc = nd.PendingDataset
	case "commissioner":
		doc = nd.CommissionerDataset
	case "bbr":
		doc = nd.BbrDataset
	default:
		fmt.Printf("Unknown dataset: %s\n", args[0])
		return
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func (i *Interpreter) cmdChannel(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: channel get | channel set <page> <number> <delay-ms>")
		return
	}
	ctx := context.Background()

	switch strings.ToLower(args[0]) {
	case "get":
		channel, err := i.comm.GetChannel(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("page %d, channel %d\n", channel.Page, channel.Number)

	case "set":
		if len(args) < 4 {
			fmt.Println("Usage: channel set <page> <number> <delay-ms>")
			return
		}
		page, err := strconv.ParseUint(args[1], 10, 8)
		if err != nil {
			fmt.Printf("Invalid page: %v\n", err)
			return
		}
		number, err := strconv.ParseUint(args[2], 10, 16)
		if err != nil {
			fmt.Printf("Invalid channel number: %v\n", err)
			return
		}
		delay, err := delayArg(args[3])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		channel := dataset.Channel{Page: uint8(page), Number: uint16(number)}
		if err := i.comm.SetChannel(ctx, channel, delay); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Pending channel change staged")

	default:
		fmt.Printf("Unknown channel subcommand: %s\n", args[0])
	}
}

func (i *Interpreter) cmdNetworkName(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: networkname get | networkname set <name>")
		return
	}
	ctx := context.Background()

	switch strings.ToLower(args[0]) {
	case "get":
		name, err := i.comm.GetNetworkName(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println(name)
	case "set":
		if len(args) < 2 {
			fmt.Println("Usage: networkname set <name>")
			return
		}
		if err := i.comm.SetNetworkName(ctx, args[1]); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Done")
	default:
		fmt.Printf("Unknown networkname subcommand: %s\n", args[0])
	}
}

func (i *Interpreter) cmdPanId(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: panid get | set <panid> <delay-ms> | query <mask> <panid> <dst> | conflict <panid>")
		return
	}
	ctx := context.Background()

	switch strings.ToLower(args[0]) {
	case "get":
		panId, err := i.comm.GetPanId(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("0x%04X\n", panId)

	case "set":
		if len(args) < 3 {
			fmt.Println("Usage: panid set <panid> <delay-ms>")
			return
		}
		panId, err := parseUint16(args[1])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		delay, err := delayArg(args[2])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if err := i.comm.SetPanId(ctx, panId, delay); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Pending PAN ID change staged")

	case "query":
		if len(args) < 4 {
			fmt.Println("Usage: panid query <channel-mask> <panid> <dst-addr>")
			return
		}
		mask, err := parseUint32(args[1])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		panId, err := parseUint16(args[2])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if err := i.comm.PanIdQuery(ctx, mask, panId, args[3]); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Query sent; conflicts arrive asynchronously (see 'panid conflict')")

	case "conflict":
		if len(args) < 2 {
			fmt.Println("Usage: panid conflict <panid>")
			return
		}
		panId, err := parseUint16(args[1])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("%v\n", i.comm.HasPanIdConflict(panId))

	default:
		fmt.Printf("Unknown panid subcommand: %s\n", args[0])
	}
}

func (i *Interpreter) cmdExtPanId(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: extpanid get | extpanid set <hex8>")
		return
	}
	ctx := context.Background()

	switch strings.ToLower(args[0]) {
	case "get":
		extPanId, err := i.comm.GetExtendedPanId(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("%X\n", extPanId)
	case "set":
		if len(args) < 2 {
			fmt.Println("Usage: extpanid set <hex8>")
			return
		}
		extPanId, err := security.DecodeHexString(args[1])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if err := i.comm.SetExtendedPanId(ctx, extPanId); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Done")
	default:
		fmt.Printf("Unknown extpanid subcommand: %s\n", args[0])
	}
}

func (i *Interpreter) cmdMasterKey(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: masterkey get | masterkey set <hex16> <delay-ms>")
		return
	}
	ctx := context.Background()

	switch strings.ToLower(args[0]) {
	case "get":
		masterKey, err := i.comm.GetNetworkMasterKey(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("%X\n", masterKey)
	case "set":
		if len(args) < 3 {
			fmt.Println("Usage: masterkey set <hex16> <delay-ms>")
			return
		}
		masterKey, err := security.DecodeHexString(args[1])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		delay, err := delayArg(args[2])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if err := i.comm.SetNetworkMasterKey(ctx, masterKey, delay); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Pending master key rotation staged")
	default:
		fmt.Printf("Unknown masterkey subcommand: %s\n", args[0])
	}
}

func (i *Interpreter) cmdPSKc(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: pskc get | pskc set <hex16>")
		return
	}
	ctx := context.Background()

	switch strings.ToLower(args[0]) {
	case "get":
		pskc, err := i.comm.GetPSKc(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("%X\n", pskc)
	case "set":
		if len(args) < 2 {
			fmt.Println("Usage: pskc set <hex16>")
			return
		}
		pskc, err := security.DecodeHexString(args[1])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if err := i.comm.SetPSKc(ctx, pskc); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Done")
	default:
		fmt.Printf("Unknown pskc subcommand: %s\n", args[0])
	}
}

func (i *Interpreter) cmdMeshLocalPrefix(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: mlprefix get | mlprefix set <hex8> <delay-ms>")
		return
	}
	ctx := context.Background()

	switch strings.ToLower(args[0]) {
	case "get":
		prefix, err := i.comm.GetMeshLocalPrefix(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("%X\n", prefix)
	case "set":
		if len(args) < 3 {
			fmt.Println("Usage: mlprefix set <hex8> <delay-ms>")
			return
		}
		prefix, err := security.DecodeHexString(args[1])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		delay, err := delayArg(args[2])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if err := i.comm.SetMeshLocalPrefix(ctx, prefix, delay); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Pending prefix change staged")
	default:
		fmt.Printf("Unknown mlprefix subcommand: %s\n", args[0])
	}
}

func (i *Interpreter) cmdSecurityPolicy() {
	policy, err := i.comm.GetSecurityPolicy(context.Background())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("rotation %d hours, flags %X\n", policy.RotationTime, policy.Flags)
}

func (i *Interpreter) cmdBbrDataset(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: bbrdataset get | trihostname <name> | reghostname <name>")
		return
	}
	ctx := context.Background()

	switch strings.ToLower(args[0]) {
	case "get":
		ds, err := i.comm.GetBbrDataset(ctx, 0xFFFF)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		data, err := json.MarshalIndent(ds, "", "  ")
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println(string(data))

	case "trihostname":
		if len(args) < 2 {
			hostname, err := i.comm.GetTriHostname(ctx)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				return
			}
			fmt.Println(hostname)
			return
		}
		if err := i.comm.SetTriHostname(ctx, args[1]); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Done")

	case "reghostname":
		if len(args) < 2 {
			hostname, err := i.comm.GetRegistrarHostname(ctx)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				return
			}
			fmt.Println(hostname)
			return
		}
		if err := i.comm.SetRegistrarHostname(ctx, args[1]); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Done")

	default:
		fmt.Printf("Unknown bbrdataset subcommand: %s\n", args[0])
	}
}

func parseUint16(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		// Digits that overflow 16 bits as hex are retried as decimal.
		v, err = strconv.ParseUint(s, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q", s)
		}
	}
	return uint16(v), nil
}

func parseUint32(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	return uint32(v), nil
}
