package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/adms/sessiond/api/transport"
	"github.com/adms/sessiond/domain"
	"github.com/adms/sessiond/internal/services/controller"
	"github.com/adms/sessiond/pkg/httpcontext"
	"github.com/adms/sessiond/repository"
	sessionstore "github.com/adms/sessiond/usecase/session"
)

// Locator exposes the path the lifecycle last steered the client toward.
type Locator interface {
	Location() string
}

type SessionHandler struct {
	baseHandler
	store      *sessionstore.Store
	lifecycle  *controller.Controller
	locator    Locator
	events     repository.EventRepository
	activityOK map[string]struct{}
}

func NewSessionHandler(
	store *sessionstore.Store,
	lifecycle *controller.Controller,
	locator Locator,
	events repository.EventRepository,
	activityEvents []string,
	adapter *httpcontext.Adapter,
	logger *zap.Logger,
) *SessionHandler {
	allowed := make(map[string]struct{}, len(activityEvents))
	for _, event := range activityEvents {
		allowed[event] = struct{}{}
	}
	return &SessionHandler{
		baseHandler: newBaseHandler(adapter, logger),
		store:       store,
		lifecycle:   lifecycle,
		locator:     locator,
		events:      events,
		activityOK:  allowed,
	}
}

// @Summary Establish a session from backend-issued credentials
// @Tags session
// @Router /api/v1/session/login [post]
func (h *SessionHandler) Login(ctx *fasthttp.RequestCtx) {
	var req transport.LoginRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Token == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	session := &domain.Session{
		Token:      req.Token,
		User:       req.User,
		Usergroups: req.Usergroups,
	}
	if err := h.lifecycle.EstablishSession(stdCtx, session); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, h.view())
}

// @Summary End the session
// @Tags session
// @Router /api/v1/session/logout [post]
func (h *SessionHandler) Logout(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	h.lifecycle.Terminate(stdCtx, domain.EventLogout, "user logout")
	h.respondSuccess(ctx, http.StatusOK, h.view())
}

type activityRequest struct {
	Event string `json:"event"`
}

// @Summary Report user activity
// @Tags session
// @Router /api/v1/session/activity [post]
func (h *SessionHandler) Activity(ctx *fasthttp.RequestCtx) {
	var req activityRequest
	_ = json.Unmarshal(ctx.PostBody(), &req)

	// unknown signals are dropped so a chatty client cannot keep the
	// session alive with events operators never whitelisted
	if req.Event != "" {
		if _, ok := h.activityOK[req.Event]; !ok {
			h.respondSuccess(ctx, http.StatusOK, map[string]bool{"accepted": false})
			return
		}
	}

	h.lifecycle.Activity()
	h.respondSuccess(ctx, http.StatusOK, map[string]bool{"accepted": true})
}

// @Summary Stay logged in during the idle countdown
// @Tags session
// @Router /api/v1/session/affirm [post]
func (h *SessionHandler) Affirm(ctx *fasthttp.RequestCtx) {
	h.lifecycle.Affirm()
	h.respondSuccess(ctx, http.StatusOK, h.view())
}

// @Summary Current session state
// @Tags session
// @Router /api/v1/session [get]
func (h *SessionHandler) State(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.view())
}

// @Summary Navigation tree for the logged-in user
// @Tags session
// @Router /api/v1/session/navtree [get]
func (h *SessionHandler) NavTree(ctx *fasthttp.RequestCtx) {
	session := h.store.Current()
	if session == nil {
		h.respondError(ctx, domain.ErrNoSession)
		return
	}

	if string(ctx.QueryArgs().Peek("refresh")) == "true" {
		stdCtx, cancel := h.requestContext(ctx)
		defer cancel()
		h.store.RefreshNavTree(stdCtx)
		session = h.store.Current()
	}

	tree := session.NavTree
	if tree == nil {
		tree = []domain.NavNode{}
	}
	h.respondSuccess(ctx, http.StatusOK, tree)
}

// @Summary Audit trail for the logged-in user
// @Tags session
// @Router /api/v1/session/events [get]
func (h *SessionHandler) Events(ctx *fasthttp.RequestCtx) {
	session := h.store.Current()
	if session == nil {
		h.respondError(ctx, domain.ErrNoSession)
		return
	}
	if h.events == nil {
		h.respondSuccess(ctx, http.StatusOK, []domain.SessionEvent{})
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	limit := ctx.QueryArgs().GetUintOrZero("limit")
	events, err := h.events.ListByUser(stdCtx, session.User.ID, limit)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if events == nil {
		events = []domain.SessionEvent{}
	}
	h.respondSuccess(ctx, http.StatusOK, events)
}

func (h *SessionHandler) view() transport.SessionView {
	view := transport.SessionView{}
	if session := h.store.Current(); session != nil {
		view.Authenticated = true
		view.User = session.User
		view.Usergroups = session.Usergroups
	}
	view.CountingDown, view.Remaining = h.lifecycle.IdleSnapshot()
	if h.locator != nil {
		view.Location = h.locator.Location()
	}
	return view
}
