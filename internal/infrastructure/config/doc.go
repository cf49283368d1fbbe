// Package config handles loading and validating the homelab dashboard configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with HOMELAB_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (JWT secret, database URIs, broker passwords) should be
//     supplied through the environment or a .env file, not committed YAML
//   - The shipped JWT secret is a known, public value. It is accepted outside
//     production so a fresh checkout starts, and refused when environment is
//     "production"
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ttl, _ := cfg.Security.JWT.TTL()
package config
