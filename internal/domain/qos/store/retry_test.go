// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

func isRetryable(err error) bool {
	return errors.Is(err, badger.ErrConflict)
}
