// Package badgerfx wires BadgerDB into the fx application: lifecycle-managed
// open/close, zap-bridged logging, and a generic typed repository with
// secondary-index maintenance.
package badgerfx

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// SeekEnd, appended to a key prefix, seeks past every key under that prefix.
// Reverse iteration starts here.
const SeekEnd = byte(0xFF)

// New opens the database described by config, routing badger's own log output
// through zap.
func New(config Config, logger *zapLogger) (*badger.DB, error) {
	opts := config.Build().
		WithLogger(logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	return db, nil
}
