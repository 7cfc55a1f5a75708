package tenantqueue

import "errors"

// ErrClosed — очередь закрыта, новые события не принимаются.
var ErrClosed = errors.New("tenant queue closed")
