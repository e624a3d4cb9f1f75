// Package commands defines the sealchat CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - keygen        Create an identity and store it in a passphrase-protected keystore
//   - fingerprint   Print the fingerprint of the stored identity
//   - chat          Connect to a relay and chat interactively
//
// # Implementation
//
// The root command loads the TOML client configuration, applies flag
// overrides and builds the dependency graph (logger, audit hook, identity
// keystore and services) before any subcommand runs. Without --identity the
// chat command generates a fresh key pair for the lifetime of the process.
package commands
