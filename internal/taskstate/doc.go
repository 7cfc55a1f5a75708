// Package taskstate выполняет переходы состояний task'ов поверх хранилища
// с optimistic locking.
//
// Каждая операция — это цикл read-modify-write с ограниченным числом
// попыток (NumberOfTries). Конфликт версий при сохранении вызывает повтор
// с перечитыванием записи; после исчерпания попыток вызывающий получает
// ErrConcurrentModification.
//
// Операции над одним task сериализуются striped lock'ом: task'и с разными
// ID почти никогда не ждут друг друга.
//
// Состояния:
//
//	NONE --Assign--> IN_PROGRESS --MarkCompleted(ok)--> OK
//	                 IN_PROGRESS --MarkCompleted(fail)--> ERROR
//	{IN_PROGRESS, OK, ERROR} --Reset--> NONE
package taskstate
