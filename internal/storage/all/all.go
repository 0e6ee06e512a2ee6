// Package all registers every storage backend. Import it for side effects
// from binaries that select a backend by config.
package all

import (
	_ "integrator/internal/storage/mssql"
	_ "integrator/internal/storage/postgres"
	_ "integrator/internal/storage/sqlite"
)
