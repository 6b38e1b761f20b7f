package storage

import "github.com/lib/pq"

// idArray adapts a []string of entity IDs to a Postgres text[] parameter,
// the same lib/pq array-literal helper the pack's relational store uses for
// raw_message_ids/file_paths columns.
func idArray(ids []string) any {
	return pq.Array(ids)
}

// arrayScanner adapts a *[]string scan destination to pq.Array's sql.Scanner.
func arrayScanner(dst *[]string) any {
	return pq.Array(dst)
}

// queryRowScanner is satisfied by *sql.Row, narrowed so SkillRepo.scanRow
// can be shared between a fresh QueryRowContext result and (in future) a
// pre-scanned row from a join.
type queryRowScanner interface {
	Scan(dest ...any) error
}
