// ABOUTME: Centralized configuration defaults for feedsync
// ABOUTME: Network limits, display widths and formats, and file locations

package config

import "time"

// Network settings
const (
	DefaultHTTPTimeout        = 30 * time.Second
	DefaultRefreshConcurrency = 8
)

// Display settings
const (
	DefaultListLimit = 20
	DisplayIDLength  = 8
	SeparatorWidth   = 60
	DateFormatShort  = "02 Jan 06 15:04 MST"
	DateFormatLong   = "Mon, 02 Jan 2006 15:04 MST"
)

// Storage settings
const (
	DefaultDirPerms = 0755
	CredentialsFile = "credentials.json"
	EnvPrefix       = "FEEDSYNC"
)
