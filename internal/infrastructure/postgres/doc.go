// Package postgres connects to PostgreSQL through a pgx connection pool and
// applies the goose migrations embedded in the migrations package.
//
// It is only used when store.driver is "postgres". The audit trail stays in
// SQLite regardless of the credential store driver.
package postgres
