// Package relay implements the untrusted WebSocket relay and the client side
// of its protocol.
//
// The relay keeps a registry of joined identities and the set of live
// connections. Every join or disconnect broadcasts the full directory to all
// connections. Sealed session keys and encrypted messages are forwarded to
// their destination verbatim, with the sender id stamped from the connection
// that carried them. Frames for absent destinations are dropped; nothing is
// buffered, retried or acknowledged.
//
// HTTP surface
//
//	GET /ws        WebSocket endpoint. Text messages carry JSON frames and
//	               binary messages carry CBOR frames.
//	GET /healthz   Liveness and registry size as JSON.
//	GET /metrics   Prometheus metrics (path configurable).
//
// The relay never sees plaintext or private keys. It could substitute public
// keys in directory snapshots; clients have no defense against that beyond
// comparing fingerprints out of band.
package relay
