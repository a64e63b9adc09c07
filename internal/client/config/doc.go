// Package config loads runtime configuration for the fieldvisit CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-p string   portal base URL
//	-r string   refresh base URL
//	-d string   data directory
//	-t int      request timeout (seconds)
//	-m string   metrics listen address
//
// # JSON schema
//
// Durations use timex.Duration, so values can be strings like "15s" or
// integer nanoseconds. Keys left out keep their default:
//
//	{
//	  "portal_base_url": "https://portal.example.com/api/",
//	  "refresh_base_url": "https://live.example.com/api/",
//	  "profile_image_base_url": "https://cdn.example.com/",
//	  "data_dir": "/var/lib/fieldvisit",
//	  "device_type": "Web",
//	  "device_token": "",
//	  "device_id": "",
//	  "auth_scheme": "",
//	  "request_timeout": "15s",
//	  "restore_timeout": "5s",
//	  "metrics_addr": "127.0.0.1:9100"
//	}
package config
