// Package password hashes and verifies account passwords.
//
// New accounts are hashed with Argon2id by default, encoded in PHC format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// bcrypt ($2a$, $2b$, $2y$) is supported both as a configurable primary
// algorithm and for verifying hashes written by earlier deployments of the
// college app. [Hasher.NeedsUpgrade] reports hashes that use a different
// algorithm or weaker parameters than the configured one, so the engine can
// rehash after a successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other campusAuth package.
//   - Log plaintext passwords.
package password
