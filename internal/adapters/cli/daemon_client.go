package cli

import (
	"github.com/acdtunes/fleetd/internal/adapters/controlsocket"
)

// newDaemonClient is a thin constructor wrapper so command code never
// imports the controlsocket package directly by name.
func newDaemonClient() *controlsocket.Client {
	return controlsocket.NewClient(socketPath)
}
