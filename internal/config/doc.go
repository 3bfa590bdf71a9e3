// Package config handles configuration loading for pairlink-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${PAIRLINK_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string and fail
// validation if the field is required.
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # API and SSE stream
//
// Database:
//
//	database:
//	  path: "/var/lib/pairlink/gateway.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${PAIRLINK_JWT_SECRET}"  # Required
//	  token_ttl: "168h"                     # Default 7 days
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
//	cfg, err := config.Load("/etc/pairlink/gateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
