// Package transport holds the protocol-neutral parts of the qrgate HTTP
// layer: the service interfaces the routes dispatch to, the mapping from
// domain errors to API errors and status codes, and the HTTP middleware
// chain (panic recovery, request ID, access logging).
//
// The concrete routes live in transport/http.
package transport
