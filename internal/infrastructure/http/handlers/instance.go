package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/duragraph/duragraph/internal/application/command"
	"github.com/duragraph/duragraph/internal/application/query"
	"github.com/duragraph/duragraph/internal/infrastructure/http/dto"
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// statePollInterval matches the original server's statews loop, which
// re-reads and re-pushes instance state every three seconds rather than
// pushing on every journal write.
const statePollInterval = 3 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// InstanceHandler handles the instance/task routes of spec §6.
type InstanceHandler struct {
	getInstance     *query.GetInstanceHandler
	searchInstances *query.SearchInstancesHandler
	getTask         *query.GetTaskHandler
	submitForm      *command.SubmitFormHandler
	submitReceive   *command.SubmitReceiveHandler
}

// NewInstanceHandler builds an InstanceHandler.
func NewInstanceHandler(
	getInstance *query.GetInstanceHandler,
	searchInstances *query.SearchInstancesHandler,
	getTask *query.GetTaskHandler,
	submitForm *command.SubmitFormHandler,
	submitReceive *command.SubmitReceiveHandler,
) *InstanceHandler {
	return &InstanceHandler{
		getInstance:     getInstance,
		searchInstances: searchInstances,
		getTask:         getTask,
		submitForm:      submitForm,
		submitReceive:   submitReceive,
	}
}

func toResponse(d *query.InstanceDTO) dto.InstanceResponse {
	return dto.InstanceResponse{
		ID:        d.ID,
		ModelRef:  d.ModelRef,
		Status:    d.Status,
		Variables: d.Variables,
		Pending:   d.Pending,
		UpdatedAt: d.UpdatedAt,
	}
}

// Get handles GET /instance/{iid}.
func (h *InstanceHandler) Get(c echo.Context) error {
	dtoOut, err := h.getInstance.Handle(c.Request().Context(), query.GetInstance{InstanceID: c.Param("iid")})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResponse(dtoOut))
}

// State handles GET /instance/{iid}/state — identical body to Get, a
// separate route for a client that only ever wants the state shape (spec
// §6 distinguishes /instance/{iid} from /instance/{iid}/state as the
// original server does).
func (h *InstanceHandler) State(c echo.Context) error {
	return h.Get(c)
}

// StateWS handles GET /instance/{iid}/statews: a websocket that pushes the
// instance's current state every three seconds until the client disconnects
// or the instance reaches a terminal status (spec §6).
func (h *InstanceHandler) StateWS(c echo.Context) error {
	iid := c.Param("iid")

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("failed to upgrade websocket", err)
	}
	defer conn.Close()

	ticker := time.NewTicker(statePollInterval)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		dtoOut, err := h.getInstance.Handle(ctx, query.GetInstance{InstanceID: iid})
		if err != nil {
			conn.WriteJSON(dto.ErrorResponse{Error: "not_found", Message: err.Error()})
			return nil
		}
		if err := conn.WriteJSON(toResponse(dtoOut)); err != nil {
			return nil
		}
		if dtoOut.Status == "finished" || dtoOut.Status == "failed" {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Search handles GET /instance?q=attr:val,attr:val (spec §4.8 search).
func (h *InstanceHandler) Search(c echo.Context) error {
	results, err := h.searchInstances.Handle(c.Request().Context(), query.SearchInstances{Query: c.QueryParam("q")})
	if err != nil {
		return err
	}

	out := make([]dto.InstanceResponse, 0, len(results))
	for _, r := range results {
		out = append(out, toResponse(&r))
	}
	return c.JSON(http.StatusOK, out)
}

// GetTask handles GET /instance/{iid}/task/{tid}.
func (h *InstanceHandler) GetTask(c echo.Context) error {
	info, err := h.getTask.Handle(c.Request().Context(), query.GetTask{
		InstanceID: c.Param("iid"),
		TaskID:     c.Param("tid"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}

// SubmitForm handles POST /instance/{iid}/task/{tid}/form.
func (h *InstanceHandler) SubmitForm(c echo.Context) error {
	var req dto.FormSubmission
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(err.Error())
	}

	err := h.submitForm.Handle(c.Request().Context(), command.SubmitForm{
		InstanceID: c.Param("iid"),
		TaskID:     c.Param("tid"),
		Payload:    req.Payload,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "accepted"})
}

// SubmitReceive handles POST /instance/{iid}/task/{tid}/receive.
func (h *InstanceHandler) SubmitReceive(c echo.Context) error {
	var req dto.ReceiveSubmission
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(err.Error())
	}

	err := h.submitReceive.Handle(c.Request().Context(), command.SubmitReceive{
		InstanceID: c.Param("iid"),
		TaskID:     c.Param("tid"),
		Payload:    req.Payload,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "accepted"})
}
