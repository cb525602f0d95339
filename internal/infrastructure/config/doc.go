// Package config handles loading and validating FieldLink Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with FIELDLINK_* environment variables
//   - Validation of required fields, with every problem reported at once
//
// Broker credentials and the JWT secret should be supplied through the
// environment rather than committed to the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Topics.Command)
package config
