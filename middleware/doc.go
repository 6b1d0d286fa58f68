// Package middleware adapts the engine to gin. [Authenticate] turns the
// access token cookie or bearer header into an account on the gin context;
// [RequireRole] gates a route on the account type. Both answer failures with
// the {"success": false, "message": ...} envelope and abort the chain.
package middleware
