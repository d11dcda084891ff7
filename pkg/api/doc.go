// Package api defines the wire types shared by the qrgate services and
// their clients: request and response bodies, the JSON error envelope and
// the error raised when a downstream peer cannot serve a call.
//
// The package performs no I/O. JSON field names (q, r, operations, userId)
// are part of the public contract.
package api
