// radix_util.go holds the binary-string prefix codec and aggregate-detection
// helpers the reimagine and chunk modes share, grounded on ip_addresses.go's
// get_binary_string/get_prefix_from_binary/get_0_string and misc.go's
// longestCommonPrefix/IntPow/same, generalized from IPv4-only bit widths to
// addr.Family's Width().
package modes

import (
	"net"
	"strings"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
)

// binaryKey renders a's full address as a family-width bit string, the
// generalized form of get_binary_string (which only ever saw /32 IPv4
// prefixes cut at the mask length).
func binaryKey(a addr.Addr) string {
	var b strings.Builder
	b.Grow(a.Family().Width())
	for _, octet := range a.Octets() {
		for bit := 7; bit >= 0; bit-- {
			if octet&(1<<uint(bit)) != 0 {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}
	}
	return b.String()
}

// networkFromKey is the reverse of binaryKey/truncated keys: it pads a
// shorter-than-width key with zero bits (get_0_string's role) and parses
// the result back into a Network whose PrefixLen is the key's own length,
// the way get_prefix_from_binary does.
func networkFromKey(key string, fam addr.Family) (addr.Network, error) {
	width := fam.Width()
	padded := key + strings.Repeat("0", width-len(key))
	bytes := make([]byte, width/8)
	for i := 0; i < width; i++ {
		if padded[i] == '1' {
			bytes[i/8] |= 1 << uint(7-i%8)
		}
	}
	a, err := addr.FromNetIP(net.IP(bytes), fam)
	if err != nil {
		return addr.Network{}, err
	}
	return addr.ToNetwork(a, len(key))
}

// longestCommonPrefix returns the longest string every member of prefixes
// starts with, or "" if they share no leading bit — mirrors misc.go's
// longestCommonPrefix, simplified since our inputs are already
// equal-length bit strings rather than arbitrary CIDR text.
func longestCommonPrefix(prefixes []string) string {
	if len(prefixes) == 0 {
		return ""
	}
	shortest := prefixes[0]
	for _, p := range prefixes[1:] {
		if len(p) < len(shortest) {
			shortest = p
		}
	}
	for i := 0; i < len(shortest); i++ {
		for _, p := range prefixes {
			if p[i] != shortest[i] {
				return shortest[:i]
			}
		}
	}
	return shortest
}

// intPow mirrors misc.go's IntPow: n to the m-th power over integers, used
// to check whether a candidate aggregate's children exactly cover its
// address space (2^suffix_length children expected).
func intPow(n, m int) int {
	result := 1
	for i := 0; i < m; i++ {
		result *= n
	}
	return result
}
