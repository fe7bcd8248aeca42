// Package errors provides structured errors for the flagstream CLI and
// service, with registered codes, fix suggestions, and terminal formatting.
package errors
