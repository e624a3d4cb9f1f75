// Package app wires application dependencies for the CLI.
//
// It builds the logger, the audit hook, the identity keystore and services
// from Config, exposing them via the Wire struct. Connect dials the relay and
// starts a client Engine on top of the wired dependencies.
package app
