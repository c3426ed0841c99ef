package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"leadharvest/internal/pkg/response"
	"leadharvest/internal/repository"
)

type DuplicateHandler struct {
	duplicates repository.DuplicateRepository
}

func NewDuplicateHandler(duplicates repository.DuplicateRepository) *DuplicateHandler {
	return &DuplicateHandler{duplicates: duplicates}
}

// HandleListPending returns duplicate candidates awaiting review, highest
// similarity first.
func (h *DuplicateHandler) HandleListPending(c fiber.Ctx) error {
	limit := 50
	if s := c.Query("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			return response.Error(c, fiber.StatusBadRequest, "Invalid limit")
		}
		limit = v
	}

	candidates, err := h.duplicates.ListPending(c.Context(), limit)
	if err != nil {
		return response.Error(c, fiber.StatusInternalServerError, "Internal server error")
	}
	return response.Success(c, fiber.StatusOK, "success", candidates)
}
