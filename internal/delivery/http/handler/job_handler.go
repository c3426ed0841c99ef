package handler

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"leadharvest/internal/delivery/http/dto"
	"leadharvest/internal/pkg/response"
	"leadharvest/internal/repository"
	"leadharvest/internal/scraper"
	"leadharvest/internal/service"
)

type JobHandler struct {
	jobs *service.JobService
}

func NewJobHandler(jobs *service.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

func (h *JobHandler) HandleCreateJob(c fiber.Ctx) error {
	var req dto.CreateJobRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return response.Error(c, fiber.StatusBadRequest, "Invalid request body")
	}

	job, err := h.jobs.CreateAndStart(c.Context(), req.ToConfig())
	if err != nil {
		if errors.Is(err, scraper.ErrUnknownSource) {
			return response.Error(c, fiber.StatusBadRequest, "Unknown scraping source")
		}
		return response.Error(c, fiber.StatusBadRequest, err.Error())
	}
	return response.Success(c, fiber.StatusAccepted, "job created", dto.NewJobResponse(job))
}

func (h *JobHandler) HandleGetJob(c fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.Error(c, fiber.StatusBadRequest, "Invalid job id")
	}

	job, err := h.jobs.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return response.Error(c, fiber.StatusNotFound, "Job not found")
		}
		return response.Error(c, fiber.StatusInternalServerError, "Internal server error")
	}
	return response.Success(c, fiber.StatusOK, "success", dto.NewJobResponse(job))
}

// HandleCancelJob flags a pending or running job for cancellation. Terminal
// jobs return 409.
func (h *JobHandler) HandleCancelJob(c fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.Error(c, fiber.StatusBadRequest, "Invalid job id")
	}

	if err := h.jobs.Cancel(c.Context(), id); err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return response.Error(c, fiber.StatusConflict, "Job not found or already finished")
		}
		return response.Error(c, fiber.StatusInternalServerError, "Internal server error")
	}
	return response.Success(c, fiber.StatusOK, "cancellation requested", nil)
}

func parseID(c fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}
