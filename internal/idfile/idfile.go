// Package idfile implements the on-disk codec shared by identifiers.id and
// routers.id (SPEC_FULL.md §4.E), grounded on
// original_source/.../analytics/loop_storage.rs's read_id_file/write_id_file
// and merge_id_file: each line is `key=v1;v2;...;`, keys are loop
// identifiers or router addresses depending on the file, and merging two
// such maps unions the value sets per key.
package idfile

import (
	"bufio"
	"os"
	"strings"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/yerr"
)

// Set is a deduplicated, unordered collection of string values (loop
// identifiers for routers.id, or router addresses for identifiers.id).
type Set map[string]struct{}

func NewSet(values ...string) Set {
	s := make(Set, len(values))
	for _, v := range values {
		if v != "" {
			s[v] = struct{}{}
		}
	}
	return s
}

func (s Set) Add(v string) {
	if v != "" {
		s[v] = struct{}{}
	}
}

// Sorted returns s's members in a deterministic, lexicographically sorted
// order — used when rendering a line so repeated runs are byte-identical.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// Map is the in-memory form of an identifiers.id/routers.id file: key to
// the set of values recorded for it.
type Map map[string]Set

// Read parses an id-file at path, returning an empty Map if it does not yet
// exist (a fresh storage directory has neither file present).
func Read(path string) (Map, error) {
	out := make(Map)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, yerr.Wrap(yerr.CannotRead, path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		key, rest, ok := strings.Cut(line, "=")
		if !ok {
			return nil, yerr.New(yerr.IncompatibleSchema, "idfile: line missing '=': "+line)
		}
		set := make(Set)
		for _, item := range strings.Split(rest, ";") {
			if item != "" {
				set[item] = struct{}{}
			}
		}
		out[key] = set
	}
	if err := scanner.Err(); err != nil {
		return nil, yerr.Wrap(yerr.CannotRead, path, err)
	}
	return out, nil
}

// Write overwrites path with m's full contents, one `key=v1;v2;...;` line
// per key (loop_storage.rs's write_id_file).
func Write(path string, m Map) error {
	f, err := os.Create(path)
	if err != nil {
		return yerr.Wrap(yerr.CannotWrite, path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for key, values := range m {
		if _, err := w.WriteString(key); err != nil {
			return yerr.Wrap(yerr.CannotWrite, path, err)
		}
		if err := w.WriteByte('='); err != nil {
			return yerr.Wrap(yerr.CannotWrite, path, err)
		}
		for _, v := range values.Sorted() {
			if _, err := w.WriteString(v); err != nil {
				return yerr.Wrap(yerr.CannotWrite, path, err)
			}
			if err := w.WriteByte(';'); err != nil {
				return yerr.Wrap(yerr.CannotWrite, path, err)
			}
		}
		if err := w.WriteByte('\n'); err != nil {
			return yerr.Wrap(yerr.CannotWrite, path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return yerr.Wrap(yerr.CannotWrite, path, err)
	}
	return nil
}

// AppendNew appends only the keys of fresh that are not already present in
// existing to path, matching update_identifiers' append-only semantics:
// previously written identifiers are never rewritten, only new ones are
// added. Returns the total identifier count after the append.
func AppendNew(path string, existing Map, fresh Map) (total int, err error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, yerr.Wrap(yerr.CannotWrite, path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	total = len(existing)
	for key, values := range fresh {
		if _, already := existing[key]; already {
			continue
		}
		if _, err := w.WriteString(key); err != nil {
			return total, yerr.Wrap(yerr.CannotWrite, path, err)
		}
		if err := w.WriteByte('='); err != nil {
			return total, yerr.Wrap(yerr.CannotWrite, path, err)
		}
		for _, v := range values.Sorted() {
			if _, err := w.WriteString(v); err != nil {
				return total, yerr.Wrap(yerr.CannotWrite, path, err)
			}
			if err := w.WriteByte(';'); err != nil {
				return total, yerr.Wrap(yerr.CannotWrite, path, err)
			}
		}
		if err := w.WriteByte('\n'); err != nil {
			return total, yerr.Wrap(yerr.CannotWrite, path, err)
		}
		total++
	}
	if err := w.Flush(); err != nil {
		return total, yerr.Wrap(yerr.CannotWrite, path, err)
	}
	return total, nil
}

// MergeRecord unions identifiers into base[key], creating the entry if it
// doesn't exist yet (loop_storage.rs's merge_record).
func MergeRecord(base Map, key string, identifiers Set) {
	existing, ok := base[key]
	if !ok {
		existing = make(Set, len(identifiers))
		base[key] = existing
	}
	for id := range identifiers {
		existing.Add(id)
	}
}

// Merge unions every key of toMerge into base, modifying base in place
// (loop_storage.rs's merge_id_file/merge_id_file_string).
func Merge(base Map, toMerge Map) {
	for key, values := range toMerge {
		MergeRecord(base, key, values)
	}
}
