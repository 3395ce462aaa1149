// Package config loads typed configuration from environment variables.
//
// Each concern declares its own struct with github.com/caarlos0/env tags; Load fills it after
// optionally reading .env files through github.com/joho/godotenv:
//
//	cfg, err := config.Load[mongo.Config](".env")
//
// Configs implementing Validator are checked after parsing.
package config
