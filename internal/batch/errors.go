package batch

import "errors"

// ErrBusy reports a Run call while a previous batch is still in flight; the
// runner holds one job at a time so its progress counters stay meaningful.
var ErrBusy = errors.New("batch already in progress")
