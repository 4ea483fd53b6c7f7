// Package probe implements the single-pass probe-line parser of
// SPEC_FULL.md §4.B / spec.md §4.B, grounded on
// original_source/.../structs/yarrp_line.rs (field order, arity check) and
// on the teacher's bufio.Scanner-driven readers (readers.go, rib_reader.go)
// for the overall shape of a line-oriented parser.
package probe

import (
	"strconv"
	"strings"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/yerr"
)

// Record is one parsed probe line:
// destination sec usec type code sent_ttl hop rtt ipid psize rsize rttl rtos mpls count
type Record struct {
	Destination addr.Addr
	Sec         int32
	Usec        int32
	Type        uint8
	Code        uint8
	SentTTL     uint8
	Hop         addr.Addr
	RTT         int32
	IPID        int32
	PSize       int32
	RSize       int32
	ReplyTTL    int32
	ReplyTOS    int32
	MPLS        string
	Count       int32
}

// fieldCount is the fixed arity of a probe line (§3 invariant).
const fieldCount = 15

// Parse tokenizes one probe line on ASCII space and builds a Record. Lines
// with a token count other than 15 are rejected with yerr.CannotParse, as
// are lines whose address fields don't parse for the given family.
func Parse(fam addr.Family, line string) (Record, error) {
	tokens := strings.Fields(line)
	if len(tokens) != fieldCount {
		return Record{}, yerr.Wrap(yerr.CannotParse, "", errFieldCount(len(tokens)))
	}

	dest, err := addr.Parse(tokens[0])
	if err != nil {
		return Record{}, yerr.Wrap(yerr.CannotParse, "", err)
	}
	if dest.Family() != fam {
		return Record{}, yerr.Wrap(yerr.CannotParse, "", errFamilyMismatch(tokens[0]))
	}
	hop, err := addr.Parse(tokens[6])
	if err != nil {
		return Record{}, yerr.Wrap(yerr.CannotParse, "", err)
	}
	if hop.Family() != fam {
		return Record{}, yerr.Wrap(yerr.CannotParse, "", errFamilyMismatch(tokens[6]))
	}

	sec, err1 := parseI32(tokens[1])
	usec, err2 := parseI32(tokens[2])
	typ, err3 := parseU8(tokens[3])
	code, err4 := parseU8(tokens[4])
	ttl, err5 := parseU8(tokens[5])
	rtt, err6 := parseI32(tokens[7])
	ipid, err7 := parseI32(tokens[8])
	psize, err8 := parseI32(tokens[9])
	rsize, err9 := parseI32(tokens[10])
	rttl, err10 := parseI32(tokens[11])
	rtos, err11 := parseI32(tokens[12])
	count, err12 := parseI32(tokens[14])

	for _, e := range []error{err1, err2, err3, err4, err5, err6, err7, err8, err9, err10, err11, err12} {
		if e != nil {
			return Record{}, yerr.Wrap(yerr.CannotParse, "", e)
		}
	}

	return Record{
		Destination: dest,
		Sec:         sec,
		Usec:        usec,
		Type:        typ,
		Code:        code,
		SentTTL:     ttl,
		Hop:         hop,
		RTT:         rtt,
		IPID:        ipid,
		PSize:       psize,
		RSize:       rsize,
		ReplyTTL:    rttl,
		ReplyTOS:    rtos,
		MPLS:        tokens[13],
		Count:       count,
	}, nil
}

func parseI32(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	return int32(v), err
}

func parseU8(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	return uint8(v), err
}

func errFieldCount(n int) error {
	return &parseErr{"expected 15 whitespace-separated tokens, got " + strconv.Itoa(n)}
}

func errFamilyMismatch(tok string) error {
	return &parseErr{"address " + tok + " does not match the instance's configured family"}
}

type parseErr struct{ msg string }

func (e *parseErr) Error() string { return e.msg }

// Metadata is a comment-line's key:value payload (spec.md §6): a line
// starting with '#' carries a trimmed trailing substring split on the first
// colon and delivered to the active mode out-of-band.
type Metadata struct {
	Key   string
	Value string
}

// ParseComment extracts the metadata from a '#'-prefixed line, or ok=false
// if the line is not a comment.
func ParseComment(line string) (m Metadata, ok bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return Metadata{}, false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
	idx := strings.IndexByte(payload, ':')
	if idx < 0 {
		return Metadata{Key: payload}, true
	}
	return Metadata{
		Key:   strings.TrimSpace(payload[:idx]),
		Value: strings.TrimSpace(payload[idx+1:]),
	}, true
}
