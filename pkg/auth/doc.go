// Package auth issues and verifies portal session tokens and hashes
// passwords.
//
// A session token is an HS256 JWT whose claims carry the full policy.Actor
// (user id, role, college, institute, department, faculty id and email), so
// every request can be authorised without a database round trip:
//
//	tm := auth.NewTokenManager(secret, "pubportal", 12*time.Hour)
//	token, expires, err := tm.Issue(actor)
//	claims, err := tm.Verify(token)
//
// Passwords are stored as argon2id PHC strings:
//
//	hash, err := auth.HashPassword(plain)
//	ok, err := auth.VerifyPassword(plain, hash)
//
// Handlers expose POST /auth/login and GET /auth/me. Bearer token
// verification lives in pkg/middleware.
package auth
