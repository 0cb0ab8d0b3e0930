// handlers_calc.go - RPM calculator handlers
package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rpm-monitor/backend/internal/export"
	"github.com/rpm-monitor/backend/internal/models"
	"github.com/rpm-monitor/backend/internal/rpm"
	"github.com/rpm-monitor/backend/internal/session"
)

// HandleSetParams updates one parameter ({key, value}) or several ({params}).
// Values are operator text; anything that is not a number becomes zero.
func (h *Handler) HandleSetParams(c echo.Context) error {
	var req setParamsRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}
	ctrl, err := h.writable(c)
	if err != nil {
		return err
	}

	if req.Key != "" {
		err = ctrl.SetParam(models.ParamKey(req.Key), string(req.Value))
	} else {
		p := ctrl.Params()
		for key, raw := range req.Params {
			var ok bool
			if p, ok = p.With(models.ParamKey(key), rpm.ParseInput(string(raw))); !ok {
				return FromDomainError(fmt.Errorf("%w: %q", session.ErrUnknownParam, key))
			}
		}
		err = ctrl.SetParams(p)
	}
	if err != nil {
		return FromDomainError(err)
	}
	return snapshot(c, ctrl)
}

// HandleSetGroupRPM updates the entry RPM of one group.
func (h *Handler) HandleSetGroupRPM(c echo.Context) error {
	groupID := c.Param("groupId")
	if groupID == "" {
		return NewValidationError("groupId")
	}
	var req valueRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	ctrl, err := h.writable(c)
	if err != nil {
		return err
	}
	if err := ctrl.SetGroupRPM(groupID, string(req.Value)); err != nil {
		return FromDomainError(err)
	}
	return snapshot(c, ctrl)
}

// HandleToggleGroup collapses or expands a calculator group.
func (h *Handler) HandleToggleGroup(c echo.Context) error {
	ctrl, err := h.writable(c)
	if err != nil {
		return err
	}
	collapsed, err := ctrl.ToggleGroup(c.Param("groupId"))
	if err != nil {
		return FromDomainError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"groupId":   c.Param("groupId"),
		"collapsed": collapsed,
	})
}

// HandleResetCalculator restores factory parameters and zero entry RPMs.
func (h *Handler) HandleResetCalculator(c echo.Context) error {
	ctrl, err := h.writable(c)
	if err != nil {
		return err
	}
	if err := ctrl.ResetCalculator(); err != nil {
		return FromDomainError(err)
	}
	return snapshot(c, ctrl)
}

// HandleGetTable returns the derived RPM table.
func (h *Handler) HandleGetTable(c echo.Context) error {
	ctrl := h.controller(c)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"params": ctrl.Params(),
		"rows":   ctrl.Table(),
	})
}

// HandleGetTableMsgpack returns the derived RPM table as msgpack.
func (h *Handler) HandleGetTableMsgpack(c echo.Context) error {
	ctrl := h.controller(c)
	data, err := export.EncodeMsgpack(export.Report{
		GeneratedAt: time.Now().UTC(),
		Params:      ctrl.Params(),
		Rows:        ctrl.Table(),
	})
	if err != nil {
		return NewInternalError("failed to encode table", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleExportCSV downloads the derived RPM table as CSV.
func (h *Handler) HandleExportCSV(c echo.Context) error {
	ctrl := h.controller(c)

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, ctrl.Params(), ctrl.Table()); err != nil {
		return NewInternalError("failed to write CSV", err)
	}

	name := export.FileName(time.Now())
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Request types

type setParamsRequest struct {
	Key    string                 `json:"key"`
	Value  looseString            `json:"value"`
	Params map[string]looseString `json:"params"`
}

func (r *setParamsRequest) validate() error {
	if r.Key == "" && len(r.Params) == 0 {
		return NewValidationError("key")
	}
	return nil
}

type valueRequest struct {
	Value looseString `json:"value"`
}
