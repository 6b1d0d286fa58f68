// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each RunXxx function takes a typed dependency struct of function fields and
// returns a result or one of the sentinel errors supplied in that struct. The
// engine owns stores, token managers, hashers and the mail queue; flows only
// sequence calls to them. Tests drive flows with plain closures.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import campusAuth (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
package flows
