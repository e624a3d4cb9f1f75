// Package client is the chat client's protocol engine.
//
// An Engine owns the peer directory for one relay connection. It consumes
// frames from the relay (welcome, directory, session-key, message, error)
// and exposes the operations a front end needs: listing peers, selecting a
// peer (which lazily establishes a session key), sending text and reading
// per-peer history. Observers are notified of changes through Events.
package client
