// Package app provides the application service layer.
//
// Orchestrates use cases: account registration and token lifecycle, stream
// records, donations and comments (with their broadcast side effects), and
// viewer counts. Sits between HTTP handlers and domain repositories. Depends
// on domain interfaces, not concrete implementations.
package app
