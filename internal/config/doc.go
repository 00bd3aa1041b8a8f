// Package config provides centralized configuration management.
//
// # Configuration Sources
//
// Configuration is layered, later sources overriding earlier ones:
//
//	1. Default()
//	2. YAML file (COT_CONFIG_FILE, config.yaml or configs/config.yaml)
//	3. Environment variables, including those loaded from a .env file
//
// # Environment Variables
//
// Variables follow the section layout under the COT prefix:
//
//	COT_SERVER_PORT=8080
//	COT_LOGGING_LEVEL=debug
//	COT_PATHS_DATA_DIR=/var/lib/cotpulse
//	COT_DATASETS_FOCUS_SYMBOLS=Gold,Silver,Euro FX
//	COT_NARRATIVE_API_KEY=...
//
// GEMINI_API_KEY is accepted when COT_NARRATIVE_API_KEY is unset.
//
// # Paths
//
// Relative paths resolve against the executable directory so the binary
// behaves the same whatever the working directory. See NewPaths for the
// layout of the data directory.
package config
