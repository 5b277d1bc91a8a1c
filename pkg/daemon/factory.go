package daemon

import (
	"net"
	"os"
	"time"

	"github.com/grovetools/claudemon/config"
)

// New returns a RemoteClient if the daemon socket accepts connections,
// otherwise a LocalClient built from cfg.
//
// Callers don't need to know whether the daemon is running. The same API
// works in both modes.
func New(cfg *config.Config) (Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if client := Dial(cfg.Daemon.Socket); client != nil {
		return client, nil
	}
	return NewLocalClient(cfg)
}

// Dial returns a RemoteClient if something is listening on socketPath,
// or nil.
func Dial(socketPath string) *RemoteClient {
	if _, err := os.Stat(socketPath); err != nil {
		return nil
	}
	conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
	if err != nil {
		return nil
	}
	conn.Close()
	return NewRemoteClient(socketPath)
}
