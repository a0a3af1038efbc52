// Package fs implements the identity stores on the local filesystem,
// one JSON file per record. It is suitable for development, tests and
// small single-node deployments; anything multi-node should use the
// gorm-backed stores instead.
package fs
