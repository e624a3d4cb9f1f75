package app

import (
	"io"

	"sealrelay/internal/client"
	"sealrelay/internal/config"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Client     *config.Client
	Passphrase string // unlocks Client.IdentityFile, if set

	// LogOutput, if set, replaces Client.LogFile as the log destination.
	LogOutput io.Writer

	// Notify receives engine events; OnAudit receives each new audit line.
	// Both are optional and must not block.
	Notify  func(client.Event)
	OnAudit func(line string)
}
