// Package otp implements password reset by one-time code.
//
// The flow has three steps:
//
//  1. POST /auth/otp/request {email}: a six digit code is generated, its
//     hash stored in Redis for CodeTTL and the code handed to a Sender.
//     The response is always 202 so the endpoint cannot be used to probe
//     which addresses have accounts.
//  2. POST /auth/otp/verify {email, code}: at most MaxAttempts wrong
//     guesses per code, counted in the same Redis script that compares it.
//     A correct code is consumed and exchanged for a single-use reset token
//     valid for ResetTTL.
//  3. POST /auth/password/reset {reset_token, new_password}: the token is
//     consumed and the new argon2id hash written through a
//     PasswordResetter.
//
// Redis keys:
//
//	otp:code:<email>      sha256 of the code
//	otp:attempts:<email>  failed guesses for the current code
//	otp:reset:<token>     email the reset token belongs to
package otp
