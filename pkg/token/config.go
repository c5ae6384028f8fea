package token

// Config holds the session signing configuration.
type Config struct {
	Secret     string `env:"SESSION_SECRET,required"`
	PrefixSize int    `env:"SESSION_TOKEN_PREFIX_SIZE" envDefault:"16"`
}
