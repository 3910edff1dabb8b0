package data

import (
	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// DriverName is the database/sql driver used for Postgres.
const DriverName = "pgx"
