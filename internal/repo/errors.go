package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrConcurrentModification — запись изменена другим писателем
	// после чтения (версия не совпала).
	ErrConcurrentModification = errors.New("concurrent modification")
)
