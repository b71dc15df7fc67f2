package notary

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/multiformats/go-multiaddr"
)

var ErrUnsupportedAddress = errors.New("unsupported notary address")

// EndpointURL converts a notary address into a base URL. Addresses are
// multiaddrs such as /ip4/127.0.0.1/tcp/7085 or
// /dns4/notary.example/tcp/443/https; plain http(s) URLs pass through.
func EndpointURL(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/"), nil
	}
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedAddress, err)
	}

	host := ""
	for _, code := range []int{multiaddr.P_IP4, multiaddr.P_IP6, multiaddr.P_DNS4, multiaddr.P_DNS6, multiaddr.P_DNS} {
		if v, err := ma.ValueForProtocol(code); err == nil && v != "" {
			host = v
			break
		}
	}
	if host == "" {
		return "", fmt.Errorf("%w: %q has no host component", ErrUnsupportedAddress, addr)
	}
	port, err := ma.ValueForProtocol(multiaddr.P_TCP)
	if err != nil || port == "" {
		return "", fmt.Errorf("%w: %q has no tcp component", ErrUnsupportedAddress, addr)
	}

	scheme := "http"
	for _, p := range ma.Protocols() {
		if p.Code == multiaddr.P_HTTPS || p.Code == multiaddr.P_TLS {
			scheme = "https"
		}
	}
	return scheme + "://" + net.JoinHostPort(host, port), nil
}
