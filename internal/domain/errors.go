package domain

import "errors"

var (
	// ErrSessionNotFound - сессия с таким id отсутствует в хранилище.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionNotReady - пайплайн создания еще не завершился.
	ErrSessionNotReady = errors.New("session is not ready yet")
	// ErrChannelUnavailable - транспорт канала прогресса недоступен. Не прерывает пайплайн.
	ErrChannelUnavailable = errors.New("progress channel unavailable")
	// ErrInvalidInput - некорректные входные данные запроса.
	ErrInvalidInput = errors.New("invalid input")
)
