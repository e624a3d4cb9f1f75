// Package session establishes per-peer session keys.
//
// The initiator generates a session key, seals it under the peer's identity
// key and sends it through the relay, committing to it without waiting for
// an acknowledgment. The responder opens any session key it receives and
// keeps it only if it holds no key for that peer yet: the first key wins.
package session
