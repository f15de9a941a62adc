package database

import "errors"

// ErrDirtySchema indicates a previous migration failed part way and the
// schema needs a forced version before migrating again.
var ErrDirtySchema = errors.New("database schema is dirty")
