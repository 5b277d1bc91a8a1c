package config

import (
	"fmt"

	"github.com/grovetools/claudemon/errors"
)

var permissionModes = map[string]bool{
	"default":           true,
	"acceptEdits":       true,
	"bypassPermissions": true,
	"plan":              true,
}

// Validate checks semantic constraints the schema cannot express.
func (c *Config) Validate() error {
	if c.Agent.InitTimeout.Std() <= 0 {
		return errors.New(errors.ErrCodeConfigValidation, "agent.init_timeout must be positive")
	}
	if c.Daemon.EventBuffer < 1 {
		return errors.New(errors.ErrCodeConfigValidation,
			fmt.Sprintf("daemon.event_buffer must be at least 1, got %d", c.Daemon.EventBuffer))
	}
	if c.Agent.Runtime == "" && c.Agent.BridgeScript == "" {
		return errors.New(errors.ErrCodeConfigValidation, "agent.runtime or agent.bridge_script is required")
	}
	if mode := c.Settings.DefaultPermissionMode; mode != "" && !permissionModes[mode] {
		return errors.New(errors.ErrCodeConfigValidation,
			fmt.Sprintf("settings.default_permission_mode %q is not one of default, acceptEdits, bypassPermissions, plan", mode)).
			WithDetail("value", mode)
	}
	if c.Settings.UIScale < 0 {
		return errors.New(errors.ErrCodeConfigValidation, "settings.ui_scale cannot be negative")
	}
	return nil
}
