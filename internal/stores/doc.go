// Package stores provides the Redis-backed OTP record store used by the
// signup flow.
//
// # Design
//
// One record per email is kept as a Redis hash with a retention TTL longer
// than the code validity window. Replace runs DEL and HSET inside MULTI so
// a newer request always supersedes an older one. Consume is a Lua script,
// so the lookup, comparison, expiry check and consumed mark happen as a
// single command and concurrent signups for one email cannot both win.
//
// # What this package must NOT do
//
//   - Import campusAuth or any sibling internal package.
//   - Generate codes or decide which errors reach HTTP callers.
package stores
