package event

import "errors"

var errDispatcherClosed = errors.New("dispatcher closed")
