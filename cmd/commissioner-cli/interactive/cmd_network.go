package interactive

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Network diagnostic commands of the interpreter.

func (i *Interpreter) cmdAnnounce(args []string) {
	if len(args) < 4 {
		fmt.Println("Usage: announce <channel-mask> <count> <period-ms> <dst-addr>")
		return
	}

	mask, err := parseUint32(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	count, err := strconv.ParseUint(args[1], 10, 8)
	if err != nil {
		fmt.Printf("Invalid count: %v\n", err)
		return
	}
	period, err := delayArg(args[2])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	if err := i.comm.AnnounceBegin(context.Background(), mask, uint8(count), period, args[3]); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Announce begun")
}

func (i *Interpreter) cmdEnergy(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: energy scan <mask> <count> <period> <duration> <dst> | energy report [addr]")
		return
	}

	switch strings.ToLower(args[0]) {
	case "scan":
		if len(args) < 6 {
			fmt.Println("Usage: energy scan <channel-mask> <count> <period> <scan-duration> <dst-addr>")
			return
		}
		mask, err := parseUint32(args[1])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		count, err := strconv.ParseUint(args[2], 10, 8)
		if err != nil {
			fmt.Printf("Invalid count: %v\n", err)
			return
		}
		period, err := strconv.ParseUint(args[3], 10, 16)
		if err != nil {
			fmt.Printf("Invalid period: %v\n", err)
			return
		}
		duration, err := strconv.ParseUint(args[4], 10, 16)
		if err != nil {
			fmt.Printf("Invalid scan duration: %v\n", err)
			return
		}
		if err := i.comm.EnergyScan(context.Background(), mask, uint8(count),
			uint16(period), uint16(duration), args[5]); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Scan requested; reports arrive asynchronously (see 'energy report')")

	case "report":
		if len(args) > 1 {
			report, ok := i.comm.GetEnergyReport(args[1])
			if !ok {
				fmt.Println("No report from that address")
				return
			}
			fmt.Printf("mask 0x%08X, energy %v\n", report.ChannelMask, report.EnergyList)
			return
		}
		reports := i.comm.GetAllEnergyReports()
		if len(reports) == 0 {
			fmt.Println("No energy reports")
			return
		}
		for peer, report := range reports {
			fmt.Printf("%s: mask 0x%08X, energy %v\n", peer, report.ChannelMask, report.EnergyList)
		}

	default:
		fmt.Printf("Unknown energy subcommand: %s\n", args[0])
	}
}

func (i *Interpreter) cmdMlr(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: mlr <multicast-addr> [addr...] <timeout-s>")
		return
	}

	timeoutSec, err := strconv.ParseUint(args[len(args)-1], 10, 32)
	if err != nil {
		fmt.Printf("Invalid timeout: %v\n", err)
		return
	}
	addrs := args[:len(args)-1]

	err = i.comm.RegisterMulticastListener(context.Background(), addrs, time.Duration(timeoutSec)*time.Second)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Multicast listeners registered")
}
