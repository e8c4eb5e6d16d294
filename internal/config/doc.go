// Package config handles configuration loading for the openmcp server.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults; a missing file yields
// the default configuration rather than an error.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  secret_key: "${OPENMCP_SECRET_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  host: "0.0.0.0"
//	  port: 9000
//
// Authentication:
//
//	auth:
//	  secret_key: "${OPENMCP_SECRET_KEY}"  # JWT signing secret
//	  require_auth: true
//	  allow_localhost: true                # unauthenticated loopback access
//	  access_token_expiry: "30m"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Services:
//
//	services:
//	  - name: "browseruse"
//	    enabled: true
//	    config:
//	      headless: true
//	      timeout: 30
//	      max_sessions: 5
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
