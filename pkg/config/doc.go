// Package config loads typed configuration from environment variables.
//
// It wraps github.com/caarlos0/env/v11 for struct parsing and
// github.com/joho/godotenv for optional .env files. Each package of the
// service owns its Config struct with `env` and `envDefault` tags; the
// entry point loads them once and passes them down:
//
//	var tokenCfg token.Config
//	config.MustLoad(&tokenCfg)
//
//	var limits ratelimiter.Config
//	if err := config.Load(&limits, config.WithPrefix("LOGIN_IP_LIMIT_")); err != nil {
//	    return err
//	}
package config
