// Package jwt issues and verifies the HS256 tokens handed to college app
// clients. A Manager holds one secret and one lifetime, so access and
// refresh tokens are produced by two independent managers and a token
// minted by one never verifies against the other.
package jwt
