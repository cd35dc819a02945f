// Package config provides configuration management for the chain reaction game.
//
// The config package handles:
//   - Loading game configurations from JSON and YAML files
//   - Configuration validation
//   - Default configuration management
//   - Configuration discovery and listing
//
// Configuration Format:
//
// Game configurations live in the configs directory as .json, .yaml or .yml
// files. The file name without extension is the config ID used to create
// sessions. Each configuration defines:
//   - Board dimensions (rows and cols, 2 to 20 each)
//   - Exactly two players with unique IDs and colors, each human or automated
//   - The delay before an automated player moves
//   - Whether cascades advance one explosion per acknowledgement
//   - Message templates; blank templates fall back to the built-in ones
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Load specific configuration
//	gameConfig, err := manager.LoadConfig("quick")
//
//	// Get default configuration (classic, else the first valid file)
//	defaultConfig := manager.GetDefault()
//
//	// List available configurations
//	configs, err := manager.ListConfigs()
package config
