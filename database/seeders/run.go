// Package seeders fills a fresh database with the starter catalogue and the
// first administrator. Every seeder is idempotent, so `carepath seed` can be
// re-run against a populated database.
package seeders

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gorm.io/gorm"
)

// Seeder writes one group of rows inside the transaction it is given.
type Seeder struct {
	Name string
	Run  func(tx *gorm.DB) error
}

// errSkipped marks a seeder that had nothing to do (missing config).
var errSkipped = errors.New("skipped")

// All lists the seeders in run order.
var All = []Seeder{
	{Name: "courses", Run: seedCourses},
	{Name: "admin", Run: seedAdmin},
}

// RunAll runs each seeder in its own transaction and reports progress to
// out. It stops at the first failure; earlier seeders stay committed.
func RunAll(ctx context.Context, db *gorm.DB, out io.Writer) error {
	for _, s := range All {
		fmt.Fprintf(out, "  • %-10s ", s.Name)
		err := db.WithContext(ctx).Transaction(s.Run)
		switch {
		case errors.Is(err, errSkipped):
			fmt.Fprintln(out, "skipped")
		case err != nil:
			fmt.Fprintln(out, "FAILED")
			return fmt.Errorf("seeder %s: %w", s.Name, err)
		default:
			fmt.Fprintln(out, "done")
		}
	}
	return nil
}
