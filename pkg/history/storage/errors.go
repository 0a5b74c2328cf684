package storage

import "errors"

var errMissingID = errors.New("record ID is required")
