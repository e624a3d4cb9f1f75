// Package main runs the sealrelay WebSocket relay.
//
// HTTP API
//
//	GET /ws
//	    WebSocket endpoint. Each frame is {"kind": ..., "body": {...}} as
//	    JSON in text messages, or the same envelope as CBOR in binary
//	    messages. The relay answers in the encoding of the most recent frame
//	    it received on that connection.
//
//	GET /healthz
//	    {"status":"ok","connections":N,"joined":M}
//
//	GET /metrics
//	    Prometheus metrics, including sealrelay_dropped_frames_total.
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - On connect the relay sends a welcome frame with the connection id.
//   - Every join and disconnect broadcasts the full directory to all
//     connections.
//   - Session keys and messages are forwarded to connected recipients only;
//     anything else is dropped and counted. There is no queueing.
//   - The default listen address is :8080. SIGINT or SIGTERM shuts the
//     relay down gracefully.
//
// The relay never sees plaintext or private keys; it only forwards
// ciphertext and public keys.
package main
