// Package auth implements the token authority core: the role model, the
// principal value object, and HMAC-signed token issuance and validation.
//
// The auth service is the only process holding the signing key. Every other
// service resolves tokens remotely through pkg/authclient and reconstructs
// the same Principal from the validation response.
package auth
