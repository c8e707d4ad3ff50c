package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/duragraph/duragraph/internal/application/command"
	"github.com/duragraph/duragraph/internal/application/query"
	"github.com/duragraph/duragraph/internal/infrastructure/http/dto"
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// ModelHandler handles the model-catalogue and instance-creation routes of
// spec §6: GET /model, GET /model/{name}, POST /model/{name}/instance, and
// the auto-receive POST /model/{name}/task/{tid}/receive.
type ModelHandler struct {
	listModels       *query.ListModelsHandler
	getModel         *query.GetModelHandler
	createInstance   *command.CreateInstanceHandler
	createAndReceive *command.CreateAndReceiveHandler
}

// NewModelHandler builds a ModelHandler.
func NewModelHandler(
	listModels *query.ListModelsHandler,
	getModel *query.GetModelHandler,
	createInstance *command.CreateInstanceHandler,
	createAndReceive *command.CreateAndReceiveHandler,
) *ModelHandler {
	return &ModelHandler{
		listModels:       listModels,
		getModel:         getModel,
		createInstance:   createInstance,
		createAndReceive: createAndReceive,
	}
}

// List handles GET /model.
func (h *ModelHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.ModelListResponse{Models: h.listModels.Handle(query.ListModels{})})
}

// Get handles GET /model/{name}, returning the raw BPMN source.
func (h *ModelHandler) Get(c echo.Context) error {
	name := c.Param("name")
	source, err := h.getModel.Handle(query.GetModel{ModelKey: name})
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "application/xml", source)
}

// CreateInstance handles POST /model/{name}/instance.
func (h *ModelHandler) CreateInstance(c echo.Context) error {
	name := c.Param("name")

	var req dto.CreateInstanceRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(err.Error())
	}

	inst, err := h.createInstance.Handle(c.Request().Context(), command.CreateInstance{
		ModelKey:   name,
		InstanceID: req.InstanceID,
		Variables:  req.Variables,
	})
	if err != nil {
		return err
	}

	vars, err := inst.Snapshot()
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, dto.InstanceResponse{
		ID:        inst.ID(),
		ModelRef:  inst.ModelRef(),
		Status:    inst.Status().String(),
		Variables: vars,
		Pending:   inst.Pending(),
		UpdatedAt: inst.UpdatedAt(),
	})
}

// Receive handles POST /model/{name}/task/{tid}/receive: mints a fresh
// instance of name and immediately delivers a receiveTask message to it.
func (h *ModelHandler) Receive(c echo.Context) error {
	name := c.Param("name")
	taskID := c.Param("tid")

	var req dto.ReceiveSubmission
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(err.Error())
	}

	inst, err := h.createAndReceive.Handle(c.Request().Context(), command.CreateAndReceive{
		ModelKey: name,
		TaskID:   taskID,
		Payload:  req.Payload,
	})
	if err != nil {
		return err
	}

	vars, err := inst.Snapshot()
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, dto.InstanceResponse{
		ID:        inst.ID(),
		ModelRef:  inst.ModelRef(),
		Status:    inst.Status().String(),
		Variables: vars,
		Pending:   inst.Pending(),
		UpdatedAt: inst.UpdatedAt(),
	})
}
