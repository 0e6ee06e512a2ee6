// Package all registers every source adapter with the source registry.
// Binaries blank-import this package so config selects adapters by name.
package all

import (
	_ "integrator/internal/source/csv"
	_ "integrator/internal/source/htmltable"
	_ "integrator/internal/source/json"
	_ "integrator/internal/source/sqlstmt"
)
