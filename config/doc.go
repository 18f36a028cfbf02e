// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files and ALLRUBY_-prefixed environment variables.
// It supports configuration for server settings, sandbox execution limits,
// the list of sandbox images run per submission, and logging.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Sandbox timeout: %s\n", cfg.GetTimeout())
package config
