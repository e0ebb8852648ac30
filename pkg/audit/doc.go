// Package audit records security-relevant portal events: logins, password
// resets, policy denials and every successful write to users or
// publications.
//
// Events are emitted as one JSON object per line through logrus so they can
// be shipped separately from the application log:
//
//	logger, err := audit.NewLogrusLogger("stdout")
//	...
//	logger.Log(ctx, audit.Denied(actor, audit.ResourceTypePublication, "42", decision))
//
// A Logger can be carried in the request context with WithLogger and is
// retrieved with FromContext, which falls back to a no-op logger.
package audit
