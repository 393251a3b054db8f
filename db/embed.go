// Package db provides the embedded catalog schema.
package db

import _ "embed"

// Schema contains the DDL statements for the products and product_images
// tables. Every statement is idempotent so it can run on each start.
//
//go:embed migrations/001_schema.sql
var Schema string
