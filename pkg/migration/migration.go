// Package migration runs and tracks schema migrations.
//
// Migrations register themselves from init() in database/migrations:
//
//	func init() {
//	    migration.Register("20260301000000_create_users_table", migration.Funcs{
//	        UpFn:   func(db *gorm.DB) error { return db.AutoMigrate(&models.User{}) },
//	        DownFn: func(db *gorm.DB) error { return db.Migrator().DropTable("users") },
//	    })
//	}
//
// and are applied from the CLI:
//
//	carepath migrate
//	carepath migrate:rollback
//	carepath migrate:status
package migration

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/pkg/logger"
)

// Migration is the interface every migration must implement.
type Migration interface {
	Up(db *gorm.DB) error
	Down(db *gorm.DB) error
}

// Funcs adapts a pair of functions to Migration.
type Funcs struct {
	UpFn   func(db *gorm.DB) error
	DownFn func(db *gorm.DB) error
}

func (f Funcs) Up(db *gorm.DB) error { return f.UpFn(db) }

func (f Funcs) Down(db *gorm.DB) error {
	if f.DownFn == nil {
		return nil
	}
	return f.DownFn(db)
}

// record is a row in the tracking table.
type record struct {
	ID    uint      `gorm:"primaryKey;autoIncrement"`
	Name  string    `gorm:"uniqueIndex;size:191;not null"`
	Batch int       `gorm:"not null"`
	RunAt time.Time `gorm:"autoCreateTime"`
}

func (record) TableName() string { return "schema_migrations" }

type registered struct {
	name string
	m    Migration
}

var (
	regMu    sync.Mutex
	registry = map[string]Migration{}
)

// Register adds a migration. Names are timestamp-prefixed and applied in
// lexical order regardless of registration order.
func Register(name string, m Migration) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("migration: %s registered twice", name))
	}
	registry[name] = m
}

func sorted() []registered {
	regMu.Lock()
	defer regMu.Unlock()
	out := make([]registered, 0, len(registry))
	for name, m := range registry {
		out = append(out, registered{name: name, m: m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Runner executes and tracks migrations.
type Runner struct {
	db  *gorm.DB
	out io.Writer
}

// New creates a Runner; progress lines go to out (io.Discard in tests).
func New(db *gorm.DB, out io.Writer) *Runner {
	if out == nil {
		out = io.Discard
	}
	return &Runner{db: db, out: out}
}

func (r *Runner) ensureTable(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&record{})
}

func (r *Runner) ran(ctx context.Context) (map[string]record, error) {
	var rows []record
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	m := make(map[string]record, len(rows))
	for _, rec := range rows {
		m[rec.Name] = rec
	}
	return m, nil
}

// Run applies all pending migrations as one batch and returns their names.
// Each migration and its tracking row commit together.
func (r *Runner) Run(ctx context.Context) ([]string, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("migration: ensure table: %w", err)
	}
	done, err := r.ran(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration: fetch ran: %w", err)
	}

	batch := r.nextBatch(ctx)
	var applied []string
	for _, reg := range sorted() {
		if _, ok := done[reg.name]; ok {
			continue
		}
		fmt.Fprintf(r.out, "  ▶ Migrating: %s\n", reg.name)

		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := reg.m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&record{Name: reg.name, Batch: batch}).Error
		})
		if err != nil {
			return applied, fmt.Errorf("migration: %s up: %w", reg.name, err)
		}
		applied = append(applied, reg.name)
	}

	if len(applied) == 0 {
		fmt.Fprintln(r.out, "Nothing to migrate.")
		return nil, nil
	}
	logger.Info("migration: done", "ran", len(applied), "batch", batch)
	return applied, nil
}

// Rollback reverses the most recent batch in reverse order.
func (r *Runner) Rollback(ctx context.Context) ([]string, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("migration: ensure table: %w", err)
	}

	last := r.nextBatch(ctx) - 1
	if last == 0 {
		fmt.Fprintln(r.out, "Nothing to roll back.")
		return nil, nil
	}

	var rows []record
	if err := r.db.WithContext(ctx).Where("batch = ?", last).Order("name desc").Find(&rows).Error; err != nil {
		return nil, err
	}

	regMu.Lock()
	byName := make(map[string]Migration, len(registry))
	for k, v := range registry {
		byName[k] = v
	}
	regMu.Unlock()

	var reverted []string
	for _, rec := range rows {
		m, ok := byName[rec.Name]
		if !ok {
			return reverted, fmt.Errorf("migration: cannot roll back %s: not registered", rec.Name)
		}
		fmt.Fprintf(r.out, "  ◀ Rolling back: %s\n", rec.Name)

		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := m.Down(tx); err != nil {
				return err
			}
			return tx.Delete(&record{}, rec.ID).Error
		})
		if err != nil {
			return reverted, fmt.Errorf("migration: %s down: %w", rec.Name, err)
		}
		reverted = append(reverted, rec.Name)
	}
	return reverted, nil
}

// StatusRow is one line of migrate:status.
type StatusRow struct {
	Name  string
	Ran   bool
	Batch int
}

func (r *Runner) Status(ctx context.Context) ([]StatusRow, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}
	done, err := r.ran(ctx)
	if err != nil {
		return nil, err
	}
	var rows []StatusRow
	for _, reg := range sorted() {
		rec, ok := done[reg.name]
		rows = append(rows, StatusRow{Name: reg.name, Ran: ok, Batch: rec.Batch})
	}
	return rows, nil
}

func (r *Runner) nextBatch(ctx context.Context) int {
	var max struct{ Max int }
	r.db.WithContext(ctx).Model(&record{}).Select("COALESCE(MAX(batch), 0) as max").Scan(&max)
	return max.Max + 1
}
