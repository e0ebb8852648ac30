// Package httputil provides the JSON request and response helpers shared by
// every handler in the portal.
//
// # Responses
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//	httputil.WriteBadRequest(w, "invalid input")
//
// Service errors are mapped to status codes in one place:
//
//	if err != nil {
//		httputil.WriteServiceError(w, err)
//		return
//	}
//
// *policy.ValidationError becomes 400 with per-field details, policy
// denials become 403, storage.ErrNotFound becomes 404 and duplicates 409.
//
// # Requests
//
//	var req CreateUserRequest
//	if !httputil.DecodeAndValidate(w, r, &req) {
//		return // error response already written
//	}
//
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//	limit, err := httputil.ParseQueryInt(r, "limit", 50)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
package httputil
