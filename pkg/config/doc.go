// Package config loads process configuration from environment variables.
//
// Every component of the service declares its own Config struct annotated with
// `env` tags (github.com/caarlos0/env/v11). At startup the entry point calls Load
// or MustLoad for each of them:
//
//	var jwtCfg jwt.Config
//	config.MustLoad(&jwtCfg)
//
// The first call reads a .env file from the working directory through
// github.com/joho/godotenv; variables already set in the environment take
// precedence. Each configuration type is parsed once and cached, so calling
// Load again for the same type is cheap and returns an identical copy.
//
// A field tagged `required` that is missing makes Load fail with
// ErrParsingConfig. The service treats that as a startup-fatal condition.
package config
