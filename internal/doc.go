// Package internal contains helper utilities that are private to campusAuth,
// such as OTP code and record id generation.
//
// # Sub-packages
//
//   - flows: pure-function orchestrators for every Engine operation
//   - mailqueue: bounded asynchronous mail delivery
//   - stores: Redis-backed OTP record store
//   - testkit: miniredis-backed engines and in-memory fakes for tests
//
// # What this package must NOT do
//
//   - Export types that appear in the public campusAuth API.
//   - Be imported by any package outside the campusAuth module.
package internal
