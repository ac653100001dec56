package http

import (
	"errors"
	"net/http"

	"fiction-server/internal/domain"
)

// ErrorResponse - тело ответа об ошибке в JSON API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusForError сопоставляет ошибку сервиса HTTP-статусу и сообщению для пользователя.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrStoryNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrStoryEnded):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrGenerationFailure):
		// Сообщение содержит подробности ошибки провайдера
		return http.StatusInternalServerError, err.Error()
	case errors.Is(err, domain.ErrIOFailure):
		return http.StatusInternalServerError, "storage failure"
	default:
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}
