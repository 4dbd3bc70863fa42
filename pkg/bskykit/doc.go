// Package bskykit is a small client for the Bluesky AT Protocol HTTP API.
//
// An AuthSession owns a bearer credential and performs authenticated calls.
// A BaseService is the entry point for application code: it issues anonymous
// reads itself and hands authenticated ones to the AuthSession attached to it.
// Client wires the two together and adds typed operations for logging in,
// reading the home timeline and profiles, and posting.
//
// Every call is a single blocking round trip bounded by its context. Failures
// are returned as *Error; match them with errors.Is against ErrUnauthorized,
// ErrNetwork, ErrEmptyBody, ErrDecode and the other sentinels.
package bskykit
