package cli

import (
	"context"
	"database/sql"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/jpl-au/vfslog"

	_ "modernc.org/sqlite"
)

const exportSchema = `
CREATE TABLE IF NOT EXISTS log (
	id           TEXT NOT NULL,
	size         INTEGER NOT NULL,
	payload_size INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS descriptors (
	position INTEGER PRIMARY KEY,
	size     INTEGER NOT NULL,
	tag      TEXT NOT NULL,
	family   TEXT NOT NULL,
	kind     TEXT NOT NULL,
	op       TEXT,
	error    TEXT
);

CREATE INDEX IF NOT EXISTS idx_descriptors_tag ON descriptors(tag);
`

// ExportView reports what export wrote.
type ExportView struct {
	Database    string `json:"database"`
	Descriptors int    `json:"descriptors"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir> <out.db>",
		Short: "Copy descriptors into an SQLite database",
		Long: `Write every descriptor of the log into an SQLite database for ad hoc
queries. Operations are stored as JSON. An existing database must not
already hold an export.

Example:
  vfslog export ./vfs-log ./vfs-log.db
  sqlite3 ./vfs-log.db "SELECT tag, count(*) FROM descriptors GROUP BY tag"`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, rootOpts, args[0], args[1])
		},
	}
}

func runExport(cmd *cobra.Command, opts *RootOptions, dir, out string) error {
	s, err := openSnapshot(cmd, opts, dir)
	if err != nil {
		return err
	}
	defer s.Close()

	db, err := sql.Open("sqlite", out)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := db.ExecContext(ctx, exportSchema); err != nil {
		return WrapExitError(ExitCommandError, "failed to create schema", err)
	}

	view := ExportView{Database: out}
	var failure error
	err = inTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO log (id, size, payload_size) VALUES (?, ?, ?)`,
			s.log.ID(), s.query.Size(), s.log.PayloadSize()); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO descriptors (position, size, tag, family, kind, op, error) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		it := s.query.Begin()
		for it.HasNext() {
			r := it.Next()
			v := viewOf(r)
			var opJSON, errText sql.NullString
			if v.Op != nil {
				b, err := json.Marshal(v.Op)
				if err != nil {
					return fmt.Errorf("encode %s at %d: %w", v.Tag, v.Position, err)
				}
				opJSON = sql.NullString{String: string(b), Valid: true}
			}
			if v.Error != "" {
				errText = sql.NullString{String: v.Error, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, v.Position, v.Size, v.Tag, v.Family, v.Kind, opJSON, errText); err != nil {
				return fmt.Errorf("insert %d: %w", v.Position, err)
			}
			view.Descriptors++
			if r.Kind == vfslog.Invalid {
				failure = damaged(r)
				break
			}
		}
		return nil
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "export failed", err)
	}

	opts.formatter(cmd).VerboseLog("exported %d descriptors", view.Descriptors)
	if err := opts.formatter(cmd).Emit(view, fmt.Sprintf("%d descriptors -> %s", view.Descriptors, out)); err != nil {
		return err
	}
	return failure
}

func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
