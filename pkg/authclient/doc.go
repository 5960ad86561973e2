// Package authclient validates bearer tokens against the auth service and
// resolves notification recipients. All calls fail closed: any transport
// error, non-2xx status or malformed body is treated as "not valid" rather
// than surfaced to the caller.
package authclient
