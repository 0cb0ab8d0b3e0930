package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rpm-monitor/backend/internal/auth"
	"github.com/rpm-monitor/backend/internal/catalog"
	"github.com/rpm-monitor/backend/internal/models"
	"github.com/rpm-monitor/backend/internal/session"
	"github.com/rpm-monitor/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Sessions SessionProvider
	Catalog  *catalog.Catalog
	Imports  ImportRunner
	Staging  *storage.Staging
	Assets   storage.AssetStore
	Tokens   TokenIssuer

	// AllowedExtensions lists accepted drawing file extensions. Empty accepts any.
	AllowedExtensions []string
	Version           string
	Backend           string
}

// Handler handles API requests.
type Handler struct {
	sessions SessionProvider
	catalog  *catalog.Catalog
	imports  ImportRunner
	staging  *storage.Staging
	assets   storage.AssetStore
	tokens   TokenIssuer
	allowed  []string
	version  string
	backend  string
	log      *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		sessions: deps.Sessions,
		catalog:  deps.Catalog,
		imports:  deps.Imports,
		staging:  deps.Staging,
		assets:   deps.Assets,
		tokens:   deps.Tokens,
		allowed:  deps.AllowedExtensions,
		version:  deps.Version,
		backend:  deps.Backend,
		log:      slog.Default().With("component", "api"),
	}
}

// controller returns the session of the caller. Signed-out callers share the
// read-only anonymous session.
func (h *Handler) controller(c echo.Context) *session.Controller {
	id := auth.FromContext(c)
	if !id.SignedIn || id.UserID == "" {
		return h.sessions.Anonymous()
	}
	return h.sessions.Open(c.Request().Context(), id.UserID)
}

// writable returns the caller's session, or a 401 for signed-out callers.
func (h *Handler) writable(c echo.Context) (*session.Controller, error) {
	ctrl := h.controller(c)
	if ctrl.ReadOnly() {
		return nil, FromDomainError(session.ErrReadOnly)
	}
	return ctrl, nil
}

// snapshot responds with the current session state.
func snapshot(c echo.Context, ctrl *session.Controller) error {
	return c.JSON(http.StatusOK, ctrl.Snapshot())
}

// HandleCreateSession exchanges an identity asserted by the sign-in flow for a
// bearer token.
func (h *Handler) HandleCreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	if h.tokens == nil {
		id := auth.FromContext(c)
		return c.JSON(http.StatusOK, map[string]interface{}{
			"userId": id.UserID,
			"local":  true,
		})
	}

	token, err := h.tokens.Issue(req.UserID)
	if err != nil {
		return FromDomainError(err)
	}
	ctrl := h.sessions.Open(c.Request().Context(), strings.TrimSpace(req.UserID))

	h.log.Info("user signed in", "user", ctrl.UserID())
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"userId": ctrl.UserID(),
		"token":  token,
	})
}

// HandleDeleteSession revokes the caller's token.
func (h *Handler) HandleDeleteSession(c echo.Context) error {
	if h.tokens != nil {
		if token := auth.BearerToken(c.Request()); token != "" {
			h.tokens.Revoke(token)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleGetCatalog returns the component groups, default parameters and the
// example drawing reference.
func (h *Handler) HandleGetCatalog(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"groups":         h.catalog.Groups(),
		"defaults":       h.catalog.Defaults(),
		"exampleDrawing": h.catalog.ExampleDrawing(),
		"components":     h.catalog.Len(),
	})
}

// HandleGetState returns the full session snapshot.
func (h *Handler) HandleGetState(c echo.Context) error {
	return snapshot(c, h.controller(c))
}

// HandleSetTab stores the active dashboard tab.
func (h *Handler) HandleSetTab(c echo.Context) error {
	var req setTabRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	ctrl, err := h.writable(c)
	if err != nil {
		return err
	}
	if err := ctrl.SetTab(models.Tab(req.Tab)); err != nil {
		return FromDomainError(err)
	}
	return snapshot(c, ctrl)
}

// Request types

type createSessionRequest struct {
	UserID string `json:"userId"`
}

func (r *createSessionRequest) validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return NewValidationError("userId")
	}
	return nil
}

type setTabRequest struct {
	Tab string `json:"tab"`
}

// looseString accepts a JSON string, number, or null. Operators type numbers
// into text fields, so values arrive either way.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(b))
	}
	*s = looseString(num.String())
	return nil
}
