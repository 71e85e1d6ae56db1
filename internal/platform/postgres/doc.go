// Package postgres implements the store interfaces on PostgreSQL. It owns
// query execution, row-to-entity mapping, driver error translation, and the
// embedded schema migrations.
package postgres
