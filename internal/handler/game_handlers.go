package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type createGameRequest struct {
	StoryType string `json:"story_type" validate:"required"`
}

type choiceRequest struct {
	ChoiceText string `json:"choice_text" validate:"required"`
}

// bindAndValidate разбирает тело запроса и проверяет теги validate.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return errors.New("invalid request body")
	}
	return c.Validate(req)
}

func (h *GameHandler) createGame(c echo.Context) error {
	var req createGameRequest
	if err := bindAndValidate(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: err.Error()})
	}

	res, err := h.service.CreateGame(c.Request().Context(), req.StoryType)
	if err != nil {
		h.logger.Warn("Create game failed", zap.String("story_type", req.StoryType), zap.Error(err))
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusAccepted, res)
}

func (h *GameHandler) submitChoice(c echo.Context) error {
	id := c.Param("id")
	var req choiceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: err.Error()})
	}

	state, err := h.service.SubmitChoice(c.Request().Context(), id, req.ChoiceText)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

func (h *GameHandler) getState(c echo.Context) error {
	state, err := h.service.GetState(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

func (h *GameHandler) deleteGame(c echo.Context) error {
	if err := h.service.DeleteGame(c.Request().Context(), c.Param("id")); err != nil {
		return handleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
