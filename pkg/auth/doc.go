// Package auth defines caller identity, the TokenValidator capability and
// the HTTP middleware that gates routes behind a bearer token.
//
// A TokenValidator either verifies tokens locally (package auth/jwt) or
// delegates to a peer's /auth/token/validate endpoint (package
// auth/remote). Both report failures as *Error whose Kind separates a bad
// credential from a verifier that could not be reached, which the
// middleware maps to 401 and 503 respectively.
package auth
