package repo

import "embed"

// Migrations holds the schema for golang-migrate, read from "migrations"
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations
const MigrationsDir = "migrations"
