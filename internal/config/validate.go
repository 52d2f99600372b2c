package config

import "errors"

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return errors.New("logging.format must be console or json")
	}
	if c.Workflow.RequiredState == "" {
		return errors.New("workflow.required_state must be set")
	}
	if c.Workflow.PublishTrigger == "" {
		return errors.New("workflow.publish_trigger must be set")
	}
	if c.Workflow.LocalContentWorkflow == "" {
		return errors.New("workflow.local_content_workflow must be set")
	}
	if c.Workflow.SystemUser == "" {
		return errors.New("workflow.system_user must be set")
	}
	if c.Jobs.ResultRetention <= 0 {
		return errors.New("jobs.result_retention must be positive")
	}
	return nil
}
