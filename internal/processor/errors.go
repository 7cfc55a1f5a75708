package processor

import "errors"

var (
	// ErrUnknownFunction — нет executor'а для кода функции.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrHTTPRequest — HTTP-запрос функции завершился ошибкой.
	ErrHTTPRequest = errors.New("http request failed")

	// ErrInvalidParams — параметры функции некорректны.
	ErrInvalidParams = errors.New("invalid function params")

	// ErrDispatcherUnavailable — ни один dispatcher не ответил.
	ErrDispatcherUnavailable = errors.New("no dispatcher available")
)
