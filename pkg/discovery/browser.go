package discovery

import (
	"context"
	"net"
	"sort"

	"github.com/enbility/zeroconf/v3"
)

// Browser finds Border Agents on the local link.
type Browser interface {
	// Discover browses for Border Agents until the context ends and
	// returns every agent seen, sorted by network name.
	Discover(ctx context.Context) ([]BorderAgent, error)
}

// BrowserConfig configures the mDNS browser.
type BrowserConfig struct {
	// Interface restricts browsing to one network interface; empty
	// selects all interfaces.
	Interface string
}

// MDNSBrowser implements Browser with zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
}

// NewMDNSBrowser creates a Border Agent browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	return &MDNSBrowser{config: config}
}

// Discover browses `_meshcop._udp.local` and aggregates the answers by
// instance name. The browse runs until ctx is done; callers usually
// pass a timeout around BrowseTimeout.
func (b *MDNSBrowser) Discover(ctx context.Context) ([]BorderAgent, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	agents := make(map[string]*BorderAgent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				agent := entryToBorderAgent(entry)
				if agent == nil {
					continue
				}
				if existing, found := agents[agent.InstanceName]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, agent.Addresses)
					if existing.Addr == "" {
						existing.Addr = agent.Addr
					}
				} else {
					agents[agent.InstanceName] = agent
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				delete(agents, entry.Instance)

			case <-ctx.Done():
				return
			}
		}
	}()

	err := zeroconf.Browse(ctx, ServiceTypeBorderAgent, Domain, entries, removed, b.browserOptions()...)
	if err != nil {
		cancel()
		<-done
		return nil, err
	}

	<-ctx.Done()
	<-done

	out := make([]BorderAgent, 0, len(agents))
	for _, agent := range agents {
		out = append(out, *agent)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NetworkName != out[j].NetworkName {
			return out[i].NetworkName < out[j].NetworkName
		}
		return out[i].InstanceName < out[j].InstanceName
	})
	return out, nil
}

func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		if iface, err := net.InterfaceByName(b.config.Interface); err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// entryToBorderAgent converts a zeroconf entry; entries with malformed
// TXT records are dropped.
func entryToBorderAgent(entry *zeroconf.ServiceEntry) *BorderAgent {
	agent, err := decodeTXT(entry.Text)
	if err != nil {
		return nil
	}

	agent.InstanceName = entry.Instance
	agent.Port = uint16(entry.Port)

	// Prefer IPv6: MeshCoP sessions run over the agent's IPv6 address.
	for _, ip := range entry.AddrIPv6 {
		agent.Addresses = append(agent.Addresses, ip.String())
	}
	for _, ip := range entry.AddrIPv4 {
		agent.Addresses = append(agent.Addresses, ip.String())
	}
	if len(agent.Addresses) > 0 {
		agent.Addr = agent.Addresses[0]
	}
	return &agent
}

func mergeAddresses(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, addr := range existing {
		seen[addr] = struct{}{}
	}
	for _, addr := range incoming {
		if _, ok := seen[addr]; !ok {
			existing = append(existing, addr)
		}
	}
	return existing
}
