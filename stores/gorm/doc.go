// Package gorm provides GORM-based implementations of the identity
// stores. It works with any database GORM supports; tests and the demo
// binary use the pure-Go sqlite driver (github.com/glebarez/sqlite).
//
// # Database Schema
//
// The package auto-migrates two tables:
//   - principals: credential records, with unique indexes on email,
//     username, external_id and legacy_id
//   - links: saved bookmarks, keyed by owner for migration rewrites
//
// # Usage
//
//	db, _ := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
//	gormstore.AutoMigrate(db)
//	store := gormstore.NewPrincipalStore(db)
//	links := gormstore.NewLinkStore(db)
package gorm
