package web

import (
	"errors"

	"github.com/caseway/caseway/pkg/engine"
	"github.com/caseway/caseway/pkg/models"
	"github.com/caseway/caseway/pkg/persistence"
	"github.com/caseway/caseway/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for service and engine
// layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err),
		errors.Is(err, models.ErrNoStartStep),
		errors.Is(err, models.ErrAmbiguousStartStep):
		return badRequest(c, err.Error())

	case services.IsConflictError(err),
		errors.Is(err, engine.ErrInstanceNotActive),
		errors.Is(err, engine.ErrInstanceNotSuspended),
		errors.Is(err, engine.ErrDefinitionInactive),
		errors.Is(err, engine.ErrTaskNotOpen):
		return conflict(c, err.Error())

	case persistence.IsDefinitionNotFound(err):
		return notFound(c, "definition not found")

	case persistence.IsInstanceNotFound(err):
		return notFound(c, "instance not found")

	case persistence.IsTaskNotFound(err):
		return notFound(c, "task not found")

	default:
		return internalError(c, err)
	}
}
