// merge.go implements the out-of-scope `merge` mode: deduplicate a large
// set of destination files (loops/*.dest or imperiled/*.imp) into one
// output, using an on-disk sqlite3 scratch database as the UNIQUE index
// instead of an in-process Go set — the files this mode targets are
// assumed too large to dedupe in memory, the same scale assumption
// readers.go's ReadSqlite makes about bdrmapit.sqlite. Grounded on
// readers.go's SqliteReader (database/sql + the mattn/go-sqlite3 driver
// registered for its side effect).
package modes

import (
	"bufio"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/yerr"
)

// MergeConfig holds the `merge` command's flags.
type MergeConfig struct {
	Inputs    []string
	Output    string
	ScratchDB string // path to the throwaway sqlite3 file; "" uses Output+".scratch.sqlite3"
}

// RunMerge unions every line across cfg.Inputs into cfg.Output, deduplicated
// via a scratch sqlite3 database that is removed once the merge completes.
func RunMerge(cfg MergeConfig, log *zerolog.Logger) error {
	scratchPath := cfg.ScratchDB
	if scratchPath == "" {
		scratchPath = cfg.Output + ".scratch.sqlite3"
	}
	os.Remove(scratchPath)
	defer os.Remove(scratchPath)

	db, err := sql.Open("sqlite3", scratchPath)
	if err != nil {
		return yerr.Wrap(yerr.CannotWrite, scratchPath, err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE seen (line TEXT PRIMARY KEY)`); err != nil {
		return yerr.Wrap(yerr.SerializationError, scratchPath, err)
	}

	insert, err := db.Prepare(`INSERT OR IGNORE INTO seen (line) VALUES (?)`)
	if err != nil {
		return yerr.Wrap(yerr.SerializationError, scratchPath, err)
	}
	defer insert.Close()

	var total, unique int
	for _, path := range cfg.Inputs {
		n, err := feedFileIntoScratch(path, insert)
		if err != nil {
			return err
		}
		total += n
	}

	out, err := os.Create(cfg.Output)
	if err != nil {
		return yerr.Wrap(yerr.CannotWrite, cfg.Output, err)
	}
	defer out.Close()
	w := bufio.NewWriter(out)

	rows, err := db.Query(`SELECT line FROM seen ORDER BY line`)
	if err != nil {
		return yerr.Wrap(yerr.SerializationError, scratchPath, err)
	}
	defer rows.Close()
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return yerr.Wrap(yerr.SerializationError, scratchPath, err)
		}
		if _, err := w.WriteString(line + "\n"); err != nil {
			return yerr.Wrap(yerr.CannotWrite, cfg.Output, err)
		}
		unique++
	}
	if err := rows.Err(); err != nil {
		return yerr.Wrap(yerr.SerializationError, scratchPath, err)
	}
	if err := w.Flush(); err != nil {
		return yerr.Wrap(yerr.CannotWrite, cfg.Output, err)
	}

	log.Info().Int("inputs", len(cfg.Inputs)).Int("lines_seen", total).Int("unique", unique).Msg("merge: dedup complete")
	return nil
}

func feedFileIntoScratch(path string, insert *sql.Stmt) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, yerr.Wrap(yerr.CannotRead, path, err)
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if _, err := insert.Exec(line); err != nil {
			return n, yerr.Wrap(yerr.SerializationError, path, fmt.Errorf("inserting line: %w", err))
		}
		n++
	}
	return n, scanner.Err()
}
