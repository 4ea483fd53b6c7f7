// Package input implements the streaming driver of SPEC_FULL.md §4.H /
// spec.md §4.H: it owns the only bufio.Scanner over the probe-line stream,
// groups consecutive same-destination lines into the route builder's
// TtlAnswers shape, and hands finished routes and out-of-band comment
// metadata to the active mode. Grounded on the teacher's
// readers.go (bufio.Scanner-driven line readers, compress/gzip for
// transparent .gz input) generalized from warts/RIB text to probe lines.
package input

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/probe"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/route"
)

// RouteHandler receives one destination's finished Route. An error aborts
// the stream — §7 treats store/admission errors as local to a route, so a
// handler that wants to keep going after a failure should log and return
// nil itself.
type RouteHandler func(*route.Route) error

// MetadataHandler receives one comment line's key:value payload (§6).
type MetadataHandler func(probe.Metadata)

// Driver streams probe lines from one or more files, grouping consecutive
// records sharing a destination into a Route. §4.D's model assumes the
// input is already ordered by destination, the way the scanner itself
// emits it; a destination that reappears after a different one has
// intervened starts a fresh Route rather than extending the old one.
type Driver struct {
	fam            addr.Family
	minTTL, maxTTL uint8
	log            *zerolog.Logger
}

// New builds a Driver for the given family and inclusive scan window.
func New(fam addr.Family, minTTL, maxTTL uint8, log *zerolog.Logger) *Driver {
	return &Driver{fam: fam, minTTL: minTTL, maxTTL: maxTTL, log: log}
}

// openFile opens path for reading, transparently gunzipping when the name
// ends in .gz (readers.go's WartsReader.Open does the same dispatch via a
// shelled-out gunzip; a real io.Reader is cheaper here and needs no
// subprocess).
func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &gzipReadCloser{gz: gz, f: f}, nil
}

type gzipReadCloser struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }
func (g *gzipReadCloser) Close() error {
	g.gz.Close()
	return g.f.Close()
}

// grouper accumulates one destination's TtlAnswers across the stream,
// flushing to a Route whenever the destination changes.
type grouper struct {
	d       *Driver
	current addr.Addr
	have    bool
	byTTL   map[uint8][]probe.Record
	onRoute RouteHandler
}

func newGrouper(d *Driver, onRoute RouteHandler) *grouper {
	return &grouper{d: d, byTTL: make(map[uint8][]probe.Record), onRoute: onRoute}
}

// add folds one parsed record into the grouper, flushing the previous
// destination's route first if r starts a new one.
func (g *grouper) add(r probe.Record) error {
	if g.have && !g.current.Equal(r.Destination) {
		if err := g.flush(); err != nil {
			return err
		}
	}
	g.current = r.Destination
	g.have = true
	g.byTTL[r.SentTTL] = append(g.byTTL[r.SentTTL], r)
	return nil
}

func (g *grouper) flush() error {
	if !g.have || len(g.byTTL) == 0 {
		g.have = false
		g.byTTL = make(map[uint8][]probe.Record)
		return nil
	}
	rt, err := route.Build(g.byTTL, g.d.minTTL, g.d.maxTTL, g.d.log)
	g.have = false
	g.byTTL = make(map[uint8][]probe.Record)
	if err != nil {
		return err
	}
	return g.onRoute(rt)
}

// Stream reads every path in order, dispatching comment lines to onMeta and
// completed destinations' routes to onRoute. Unparseable probe lines are
// logged and dropped (§7's local-error policy); a route-builder or handler
// error aborts the stream, since it signals trouble below the parse layer.
func (d *Driver) Stream(paths []string, onRoute RouteHandler, onMeta MetadataHandler) error {
	g := newGrouper(d, onRoute)
	for _, path := range paths {
		if err := d.streamFile(path, g, onMeta); err != nil {
			return err
		}
	}
	return g.flush()
}

func (d *Driver) streamFile(path string, g *grouper, onMeta MetadataHandler) error {
	f, err := openFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if meta, ok := probe.ParseComment(line); ok {
			if onMeta != nil {
				onMeta(meta)
			}
			continue
		}
		rec, err := probe.Parse(d.fam, line)
		if err != nil {
			d.log.Warn().Str("path", path).Str("line", line).Err(err).Msg("input: dropping unparseable probe line")
			continue
		}
		if err := g.add(rec); err != nil {
			return err
		}
	}
	return scanner.Err()
}
