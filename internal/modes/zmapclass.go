// zmapclass.go implements the ZMAP companion-scan classification strings of
// SPEC_FULL.md §4 item 4, grounded on
// original_source/.../structs/zmap.rs's ZMAPClassification enum and its
// Display impl. The ZMAP post-processor itself (reading a zmap log,
// correlating it against a loop run) stays an external collaborator per
// spec.md §1; this file holds only the string mapping and the ZMAPLine
// record shape, and no command in this module calls into it.
package modes

import "strings"

// ZMAPClassification mirrors the original's enum of outcome codes a
// companion zmap scan can record for a target.
type ZMAPClassification int

const (
	ZMAPEchoReply ZMAPClassification = iota
	ZMAPTimxceed
	ZMAPUnreach
	ZMAPUnreachNoRoute
	ZMAPUnreachAddr
	ZMAPUnreachRejectRoute
	ZMAPUnreachNoPort
	ZMAPUnreachAdmin
	ZMAPUnreachPolicy
	ZMAPParamprob
)

// String renders the classification the way the original's Display impl
// does, with one deliberate fix: the original's match arm for
// UnreachNoPort returns the same literal as UnreachNoRoute
// ("unreach_noroute"), a copy/paste bug (spec.md §9's open question). Here
// UnreachNoPort stringifies as "unreach_noport".
func (c ZMAPClassification) String() string {
	switch c {
	case ZMAPEchoReply:
		return "echoreply"
	case ZMAPTimxceed:
		return "timxceed"
	case ZMAPUnreach:
		return "unreach"
	case ZMAPUnreachNoRoute:
		return "unreach_noroute"
	case ZMAPUnreachAddr:
		return "unreach_addr"
	case ZMAPUnreachRejectRoute:
		return "unreach_rejectroute"
	case ZMAPUnreachNoPort:
		return "unreach_noport"
	case ZMAPUnreachAdmin:
		return "unreach_admin"
	case ZMAPUnreachPolicy:
		return "unreach_policy"
	case ZMAPParamprob:
		return "paramprob"
	default:
		return "unknown"
	}
}

// ParseZMAPClassification is the reverse of String, used by the ZMAP log
// reader (an external collaborator) to turn a logged code back into the
// typed enum.
func ParseZMAPClassification(s string) (ZMAPClassification, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "echoreply":
		return ZMAPEchoReply, true
	case "timxceed":
		return ZMAPTimxceed, true
	case "unreach":
		return ZMAPUnreach, true
	case "unreach_noroute":
		return ZMAPUnreachNoRoute, true
	case "unreach_addr":
		return ZMAPUnreachAddr, true
	case "unreach_rejectroute":
		return ZMAPUnreachRejectRoute, true
	case "unreach_noport":
		return ZMAPUnreachNoPort, true
	case "unreach_admin":
		return ZMAPUnreachAdmin, true
	case "unreach_policy":
		return ZMAPUnreachPolicy, true
	case "paramprob":
		return ZMAPParamprob, true
	default:
		return 0, false
	}
}

// ZMAPLine is one row of a companion zmap scan's output, field names taken
// from original_source/.../structs/zmap.rs's ZMAPLine.
type ZMAPLine struct {
	Saddr          string
	Daddr          string
	OrigDestIP     string
	OriginalTTL    uint8
	IPID           uint64
	TTL            uint8
	Classification ZMAPClassification
	TimestampTs    uint64
	TimestampUs    uint64
}
