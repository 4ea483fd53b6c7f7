// io.go collects the small file-reading helpers shared by several modes:
// blocklists, persistent-router/loop id-files and plain target lists.
package modes

import (
	"bufio"
	"os"
	"strings"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/idfile"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/yerr"
)

// readAddrSet parses a routers.id-format file's keys into an address set of
// the given family (spec.md §6's "persistent loops / routers" input).
func readAddrSet(path string, fam addr.Family) (map[addr.Addr]struct{}, error) {
	m, err := idfile.Read(path)
	if err != nil {
		return nil, err
	}
	out := make(map[addr.Addr]struct{}, len(m))
	for key := range m {
		a, err := addr.Parse(key)
		if err != nil || a.Family() != fam {
			continue
		}
		out[a] = struct{}{}
	}
	return out, nil
}

// readIDSet is readAddrSet's loop-identifier counterpart: the keys are
// opaque hex ids, not addresses, so they pass straight into an idfile.Set.
func readIDSet(path string) (idfile.Set, error) {
	m, err := idfile.Read(path)
	if err != nil {
		return nil, err
	}
	out := make(idfile.Set, len(m))
	for key := range m {
		out.Add(key)
	}
	return out, nil
}

// readNetworkList parses a one-CIDR-per-line blocklist file.
func readNetworkList(path string) ([]addr.Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, yerr.Wrap(yerr.CannotRead, path, err)
	}
	defer f.Close()

	var out []addr.Network
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		n, err := addr.ParseNetwork(line)
		if err != nil {
			return nil, yerr.Wrap(yerr.CannotParse, path, err)
		}
		out = append(out, n)
	}
	if err := scanner.Err(); err != nil {
		return nil, yerr.Wrap(yerr.CannotRead, path, err)
	}
	return out, nil
}

// readLineSet reads a plain newline-delimited list of tokens (addresses or
// prefixes, depending on caller), e.g. --target-list.
func readLineSet(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, yerr.Wrap(yerr.CannotRead, path, err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			out = append(out, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, yerr.Wrap(yerr.CannotRead, path, err)
	}
	return out, nil
}
