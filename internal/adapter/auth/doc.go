// Package auth issues and verifies bearer tokens and hashes passwords.
//
// Tokens are HS256 JWTs with user_id and token_type claims. Verifier resolves an
// access token to a domain.Identity through the user store; InvalidToken and
// IdentityNotFound are reported as distinct sentinel errors so callers can
// decide how much to reveal.
package auth
