package server

import "time"

type Config struct {
	// Addr is the listen address. The API serves one local user; binding
	// anything other than loopback is the operator's own decision.
	Addr string

	// WorkspaceDir is the workspace root holding collections and the
	// vault record.
	WorkspaceDir string

	// UnlockWindow caps passphrase attempts per client IP: UnlockBurst
	// attempts per UnlockWindow.
	UnlockWindow time.Duration
	UnlockBurst  int
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8787"
	}
	if c.WorkspaceDir == "" {
		c.WorkspaceDir = "./workspace"
	}
	if c.UnlockWindow <= 0 {
		c.UnlockWindow = time.Minute
	}
	if c.UnlockBurst <= 0 {
		c.UnlockBurst = 10
	}
}
