package pgstore

import "embed"

// Migrations holds the goose migrations of the relational schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations that goose reads.
const MigrationsDir = "migrations"
