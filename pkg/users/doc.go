// Package users manages portal accounts.
//
// Every write goes through the policy engine: the actor must be allowed to
// create the requested role, the scope fields are resolved from the actor's
// own scope, the email domain must match the placement and the target must
// be inside the actor's management scope. The uniqueness pre-check is
// advisory; the unique indexes on email and faculty id decide.
package users
