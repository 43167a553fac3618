package bunstore

import (
	_ "embed"
	"errors"
	"fmt"

	"context"

	"github.com/uptrace/bun"
)

//go:embed resolve_max_concurrency.sql
var resolveMaxConcurrencyTemplate string

func createTables(ctx context.Context, db bun.IDB) error {
	for _, model := range []any{
		(*jobModel)(nil),
		(*jobBacklogModel)(nil),
		(*groupModel)(nil),
		(*ownerConcurrencyModel)(nil),
		(*groupConcurrencyModel)(nil),
	} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// createIndexes creates the indexes spec.md §4.A requires for
// sublinear-time dispatch: (status, priority, created_at) on jobs,
// (owner_id, status) and (group_id, status).
func createIndexes(ctx context.Context, db bun.IDB) error {
	steps := []struct {
		model any
		name  string
		cols  []string
	}{
		{(*jobModel)(nil), "idx_jobs_status_priority_created", []string{"status", "priority", "created_at"}},
		{(*jobModel)(nil), "idx_jobs_owner_status", []string{"owner_id", "status"}},
		{(*jobModel)(nil), "idx_jobs_group_status", []string{"group_id", "status"}},
		{(*jobBacklogModel)(nil), "idx_jobs_backlog_status_priority_created", []string{"status", "priority", "created_at"}},
		{(*jobBacklogModel)(nil), "idx_jobs_backlog_owner_status", []string{"owner_id", "status"}},
		{(*groupModel)(nil), "idx_groups_owner_status", []string{"owner_id", "status"}},
	}
	for _, step := range steps {
		_, err := db.NewCreateIndex().
			Model(step.model).
			Index(step.name).
			Column(step.cols...).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) createResolveProcedure(ctx context.Context, db bun.IDB) error {
	if s.dialect != dialectPostgres {
		return nil
	}
	stmt := fmt.Sprintf(resolveMaxConcurrencyTemplate, s.resolveProcName())
	_, err := db.ExecContext(ctx, stmt)
	return err
}

// resolveProcName returns the queue-scoped stored-procedure name
// spec.md §6 normatively calls `<queue>_owner_resolve_max_concurrency`.
func (s *Store) resolveProcName() string {
	return s.queue + "_owner_resolve_max_concurrency"
}

// Migrate creates the jobs/jobs_backlog/groups/owner_concurrency/
// group_concurrency tables, their indexes, and (on Postgres) the
// resolve_max_concurrency stored procedure, all inside one transaction.
// Migrate is idempotent; it never drops or alters existing objects.
//
// Grounded on the teacher's sql.InitDB, which wrapped createTable/
// createRunIndex/... in a single db.BeginTx/tx.Commit.
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := createTables(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createIndexes(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := s.createResolveProcedure(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	return tx.Commit()
}

// MustMigrate behaves like Migrate but panics on failure, for
// application bootstrap code that considers a broken schema
// unrecoverable. Grounded on the teacher's sql.MustInitDB.
func (s *Store) MustMigrate(ctx context.Context) {
	if err := s.Migrate(ctx); err != nil {
		panic(err)
	}
}
