package badgerfx

import "github.com/dgraph-io/badger/v4"

type Config struct {
	// Dir is the on-disk location of the key-value store. Everything the
	// service persists lives under it.
	Dir string
}

// Build translates the config into badger options.
func (c Config) Build() badger.Options {
	return badger.DefaultOptions(c.Dir)
}
