// Package database provides the PostgreSQL connection pool used by the
// presence audit writer.
package database
