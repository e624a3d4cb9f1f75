// Package wire defines the frames exchanged between clients and the relay.
//
// Frames form a closed set: Welcome, Join, Directory, SessionKey, Message and
// Error. Each is carried in an envelope of the form
//
//	{"kind": "<kind>", "body": {...}}
//
// encoded either as JSON (WebSocket text messages) or CBOR (binary
// messages). Decoding an envelope with an unrecognized kind fails with
// ErrUnknownKind rather than being ignored.
package wire
