// Package postgres provides the PostgreSQL-backed job store. Job
// records live in a single table and every write is a single-row
// statement, which is all the durability the polling contract needs.
package postgres
