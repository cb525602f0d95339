// Package database provides the SQLite store behind FieldLink Core.
//
// It opens the database with WAL mode and a busy timeout and applies the
// forward-only migrations embedded by the top-level migrations package.
// Queries elsewhere in the module always use parameterised statements.
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
