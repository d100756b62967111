// Package config loads typed configuration from environment variables.
//
// Every pgtask component describes its settings as a struct with env tags
// (see github.com/caarlos0/env). Load parses such a struct once per type and
// caches the result, so the pg, queue and httpserver configs can be loaded
// from anywhere in pgtaskd without re-reading the environment:
//
//	var qcfg queue.Config
//	config.MustLoad(&qcfg)
//
// A .env file in the working directory is read before the first Load.
// Call LoadEnv first to read other files, for example one per deployment:
//
//	config.MustLoadEnv(".env.local", ".env")
//
// Dotenv files never override variables already present in the process
// environment.
package config
