package config

const (
	defaultDataDir              = "~/.local/share/copydesk/data"
	defaultLogDir               = "~/.local/share/copydesk/logs"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultRequiredState        = "Pending"
	defaultPublishTrigger       = "forcetolive"
	defaultLocalContentWorkflow = "LocalContent"
	defaultSystemUser           = "system"
	defaultJobResultRetention   = 100
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Workflow: Workflow{
			RequiredState:        defaultRequiredState,
			PublishTrigger:       defaultPublishTrigger,
			LocalContentWorkflow: defaultLocalContentWorkflow,
			SystemUser:           defaultSystemUser,
		},
		Jobs: Jobs{
			ResultRetention: defaultJobResultRetention,
		},
	}
}
