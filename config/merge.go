package config

// mergeConfigs merges override configuration into base. Zero values in
// override leave base untouched.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	result.Agent = mergeAgent(result.Agent, override.Agent)
	result.Daemon = mergeDaemon(result.Daemon, override.Daemon)
	result.Registry = mergeRegistry(result.Registry, override.Registry)

	if override.Settings.CodexBin != nil {
		result.Settings.CodexBin = override.Settings.CodexBin
	}
	if override.Settings.ClaudeCodeBin != nil {
		result.Settings.ClaudeCodeBin = override.Settings.ClaudeCodeBin
	}
	if override.Settings.DefaultAccessMode != "" {
		result.Settings.DefaultAccessMode = override.Settings.DefaultAccessMode
	}
	if override.Settings.DefaultPermissionMode != "" {
		result.Settings.DefaultPermissionMode = override.Settings.DefaultPermissionMode
	}
	if override.Settings.UIScale != 0 {
		result.Settings.UIScale = override.Settings.UIScale
	}

	if override.Extensions != nil {
		merged := make(map[string]interface{}, len(result.Extensions)+len(override.Extensions))
		for k, v := range result.Extensions {
			merged[k] = v
		}
		for key, value := range override.Extensions {
			// Same-key maps merge one level deep; anything else replaces.
			if baseMap, ok := merged[key].(map[string]interface{}); ok {
				if overrideMap, ok := value.(map[string]interface{}); ok {
					combined := make(map[string]interface{}, len(baseMap)+len(overrideMap))
					for k, v := range baseMap {
						combined[k] = v
					}
					for k, v := range overrideMap {
						combined[k] = v
					}
					merged[key] = combined
					continue
				}
			}
			merged[key] = value
		}
		result.Extensions = merged
	}

	return &result
}

func mergeAgent(base, override AgentConfig) AgentConfig {
	result := base

	if override.Runtime != "" {
		result.Runtime = override.Runtime
	}
	if override.RuntimeArgs != nil {
		result.RuntimeArgs = override.RuntimeArgs
	}
	if override.BridgeScript != "" {
		result.BridgeScript = override.BridgeScript
	}
	if override.ClaudeCodeBin != "" {
		result.ClaudeCodeBin = override.ClaudeCodeBin
	}
	if override.NodeBin != "" {
		result.NodeBin = override.NodeBin
	}
	if override.InitTimeout != 0 {
		result.InitTimeout = override.InitTimeout
	}
	if override.EnvFile != "" {
		result.EnvFile = override.EnvFile
	}
	if override.ClientName != "" {
		result.ClientName = override.ClientName
	}

	return result
}

func mergeDaemon(base, override DaemonConfig) DaemonConfig {
	result := base

	if override.Socket != "" {
		result.Socket = override.Socket
	}
	if override.EventBuffer != 0 {
		result.EventBuffer = override.EventBuffer
	}
	if override.TranscriptInterval != 0 {
		result.TranscriptInterval = override.TranscriptInterval
	}
	if override.ShutdownTimeout != 0 {
		result.ShutdownTimeout = override.ShutdownTimeout
	}

	return result
}

func mergeRegistry(base, override RegistryConfig) RegistryConfig {
	result := base

	if override.Path != "" {
		result.Path = override.Path
	}
	if override.Workspaces != "" {
		result.Workspaces = override.Workspaces
	}
	if override.ClaudeHome != "" {
		result.ClaudeHome = override.ClaudeHome
	}

	return result
}
