// Package db embeds the PostgreSQL schema migrations.
package db

import "embed"

// Migrations holds the golang-migrate SQL files under migrations/
//
//go:embed migrations/*.sql
var Migrations embed.FS
