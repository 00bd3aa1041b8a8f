// Package store keeps the import log: one row per dataset replacement,
// stored in SQLite through sqlx.
package store
