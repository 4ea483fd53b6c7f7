// density computes the shadowed/imperiled density metric of spec.md §4.G
// item 3, grounded on the bit-scanning shape of
// Emeline-1-anaximander_simulator/misc.go's longestCommonPrefix (scan until
// the first disagreement) generalized from a string comparison over ASCII
// prefixes to a most-significant-bit-first scan over raw address octets.
package poststats

import "github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"

// SameBits returns how many leading bits every address in addrs shares,
// most-significant-first, capped at prefixEdge. An empty or single-element
// slice is considered to share the full prefixEdge.
func SameBits(addrs []addr.Addr, prefixEdge int) int {
	if len(addrs) <= 1 {
		return prefixEdge
	}
	ref := addrs[0].Octets()
	for bit := 0; bit < prefixEdge; bit++ {
		byteIdx := bit / 8
		bitInByte := 7 - (bit % 8)
		mask := byte(1) << uint(bitInByte)
		want := ref[byteIdx] & mask
		for _, a := range addrs[1:] {
			o := a.Octets()
			if o[byteIdx]&mask != want {
				return bit
			}
		}
	}
	return prefixEdge
}

// Density is |addrs| / 2^(prefixEdge - sameBits): how concentrated a set of
// addresses is within the narrowest prefix that contains all of them.
func Density(count, sameBits, prefixEdge int) float64 {
	exp := prefixEdge - sameBits
	if exp < 0 {
		exp = 0
	}
	denom := float64(uint64(1) << uint(exp))
	return float64(count) / denom
}
