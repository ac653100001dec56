package domain

import "errors"

var (
	// ErrIOFailure - чтение или запись хранилища не удались (диск, сеть, сериализация).
	ErrIOFailure = errors.New("story storage failure")
	// ErrGenerationFailure - вызов провайдера генерации не удался.
	ErrGenerationFailure = errors.New("generation failed")
	// ErrStoryNotFound - ход по истории, которая не создавалась.
	ErrStoryNotFound = errors.New("story not found")
	// ErrStoryEnded - ход по уже завершенной истории при политике reject.
	ErrStoryEnded = errors.New("story has already ended")
	// ErrInvalidInput - некорректные входные данные.
	ErrInvalidInput = errors.New("invalid input data")
)
