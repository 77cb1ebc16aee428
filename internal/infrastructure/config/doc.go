// Package config handles loading and validating grayhub configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with GRAYHUB_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The hub access token should be set via GRAYHUB_HUB_TOKEN rather than
//     written into the config file
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/grayhub.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Hub.URL)
package config
