// Package auth resolves bearer tokens to operator identities.
//
// Tokens are HS256 JWTs issued by the separate login service. A token is
// accepted only if its signature and expiry verify, it is still present in
// user_tokens (logout deletes it), and its user still exists. The Janitor
// periodically deletes stored tokens that have expired.
//
// Token issuance, password handling and user management live elsewhere.
package auth
