package mq

import "errors"

var (
	// ErrNoChannel — AMQP канал недоступен (нет соединения).
	ErrNoChannel = errors.New("no amqp channel available")

	// ErrPermanent — сообщение не может быть обработано никогда;
	// оно уходит в DLQ без повторной доставки.
	ErrPermanent = errors.New("permanent message failure")
)
