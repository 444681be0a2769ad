// Package web provides the REST surface over the definition and runtime
// services.
package web

import (
	"net/http"
	"time"

	"github.com/caseway/caseway/pkg/models"
	"github.com/caseway/caseway/pkg/persistence"
	"github.com/caseway/caseway/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	definitionService *services.Definition
	runtimeService    *services.Runtime
	validator         *validator.Validate
}

func NewAPIHandlers(
	definitionService *services.Definition,
	runtimeService *services.Runtime,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		definitionService: definitionService,
		runtimeService:    runtimeService,
		validator:         validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.definitionService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Caseway API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Caseway API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetDefinitions(c fiber.Ctx) error {
	defs, err := h.definitionService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"definitions": defs})
}

func (h *APIHandlers) GetDefinition(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Definition ID is required")
	}

	def, err := h.definitionService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(def)
}

func (h *APIHandlers) DeployDefinition(c fiber.Ctx) error {
	var req DeployDefinitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	steps := make([]*models.Step, len(req.Steps))
	for i := range req.Steps {
		steps[i] = &req.Steps[i]
	}
	links := make([]*models.Link, len(req.Links))
	for i := range req.Links {
		links[i] = &req.Links[i]
	}

	def := &models.ProcessDefinition{
		Name:       req.Name,
		Version:    req.Version,
		Compliance: req.Compliance,
		Steps:      steps,
		Links:      links,
	}
	if def.Compliance == "" {
		def.Compliance = models.ComplianceStandard
	}

	deployed, err := h.definitionService.Deploy(c.Context(), def)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(deployed)
}

func (h *APIHandlers) DeleteDefinition(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Definition ID is required")
	}

	if err := h.definitionService.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) StartInstance(c fiber.Ctx) error {
	definitionID := c.Params("id")
	if definitionID == "" {
		return badRequest(c, "Definition ID is required")
	}

	var req StartInstanceRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	instance, err := h.runtimeService.Start(c.Context(), definitionID, req.Variables)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(instance)
}

func (h *APIHandlers) GetInstances(c fiber.Ctx) error {
	status := models.InstanceStatus(c.Query("status", string(models.InstanceStatusActive)))

	switch status {
	case models.InstanceStatusActive, models.InstanceStatusCompleted,
		models.InstanceStatusTerminated, models.InstanceStatusSuspended:
	default:
		return badRequest(c, "Unknown instance status: "+string(status))
	}

	instances, err := h.runtimeService.ListInstances(c.Context(), status)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"instances": instances})
}

func (h *APIHandlers) GetInstance(c fiber.Ctx) error {
	instance, err := h.runtimeService.FetchInstance(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) GetInstanceHistory(c fiber.Ctx) error {
	instance, err := h.runtimeService.FetchInstance(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"history": instance.History})
}

func (h *APIHandlers) GetInstanceTasks(c fiber.Ctx) error {
	instanceID := c.Params("id")

	if _, err := h.runtimeService.FetchInstance(c.Context(), instanceID); err != nil {
		return handleServiceError(c, err)
	}

	tasks, err := h.runtimeService.ListTasks(c.Context(), instanceID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"tasks": tasks})
}

func (h *APIHandlers) TerminateInstance(c fiber.Ctx) error {
	var req TerminateInstanceRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	instanceID := c.Params("id")

	if _, err := h.runtimeService.FetchInstance(c.Context(), instanceID); err != nil {
		return handleServiceError(c, err)
	}

	if err := h.runtimeService.Terminate(c.Context(), instanceID, req.Reason); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SuspendInstance(c fiber.Ctx) error {
	if err := h.runtimeService.Suspend(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ResumeInstance(c fiber.Ctx) error {
	if err := h.runtimeService.Resume(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetTask(c fiber.Ctx) error {
	task, err := h.runtimeService.FetchTask(c.Context(), c.Params("id"))
	if err != nil {
		if persistence.IsTaskNotFound(err) {
			return notFound(c, "task not found")
		}

		return internalError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) ClaimTask(c fiber.Ctx) error {
	var req ClaimTaskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	task, err := h.runtimeService.ClaimTask(c.Context(), c.Params("id"), req.UserID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) ReleaseTask(c fiber.Ctx) error {
	task, err := h.runtimeService.ReleaseTask(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) CompleteTask(c fiber.Ctx) error {
	var req CompleteTaskRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.runtimeService.CompleteTask(c.Context(), c.Params("id"), req.Performer, req.Variables); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
