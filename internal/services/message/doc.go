// Package message sends and receives encrypted messages.
//
// Outgoing text is sealed with the peer's session key and posted through the
// relay. Incoming envelopes are opened and recorded in the peer's history;
// envelopes that fail decryption or integrity verification are recorded
// with a fixed diagnostic text instead of their contents.
package message
