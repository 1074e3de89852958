package resolve

import (
	"fmt"
	"strings"
)

// Mode selects which address families are queried and in which order.
type Mode int

const (
	ModeIPv4ThenIPv6 Mode = iota
	ModeIPv6ThenIPv4
	ModeIPv4Only
	ModeIPv6Only
	ModeIPv4AndIPv6
)

var modeNames = map[Mode]string{
	ModeIPv4ThenIPv6: "ipv4_then_ipv6",
	ModeIPv6ThenIPv4: "ipv6_then_ipv4",
	ModeIPv4Only:     "ipv4_only",
	ModeIPv6Only:     "ipv6_only",
	ModeIPv4AndIPv6:  "ipv4_and_ipv6",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses a mode name such as "ipv4_only". The empty string yields
// the default, ModeIPv4ThenIPv6.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ModeIPv4ThenIPv6, nil
	}
	for m, name := range modeNames {
		if s == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("invalid dns mode: %q", s)
}

type family int

const (
	family4 family = 4
	family6 family = 6
)

// phases returns the lookup plan for m. Each phase is queried in full; the
// first phase that yields an address wins.
func (m Mode) phases() [][]family {
	switch m {
	case ModeIPv6ThenIPv4:
		return [][]family{{family6}, {family4}}
	case ModeIPv4Only:
		return [][]family{{family4}}
	case ModeIPv6Only:
		return [][]family{{family6}}
	case ModeIPv4AndIPv6:
		return [][]family{{family4, family6}}
	default:
		return [][]family{{family4}, {family6}}
	}
}

// Protocol selects the transport used to reach configured DNS servers.
type Protocol int

const (
	// ProtocolTCPAndUDP queries over UDP and retries over TCP when the
	// answer is truncated or the UDP exchange fails.
	ProtocolTCPAndUDP Protocol = iota
	ProtocolTCP
	ProtocolUDP
)

var protocolNames = map[Protocol]string{
	ProtocolTCPAndUDP: "tcp_and_udp",
	ProtocolTCP:       "tcp",
	ProtocolUDP:       "udp",
}

func (p Protocol) String() string {
	if s, ok := protocolNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Protocol(%d)", int(p))
}

// ParseProtocol parses a protocol name. The empty string yields
// ProtocolTCPAndUDP.
func ParseProtocol(s string) (Protocol, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ProtocolTCPAndUDP, nil
	}
	for p, name := range protocolNames {
		if s == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("invalid dns protocol: %q", s)
}
