package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/reop/addressfinder/internal/finder"
	"github.com/reop/addressfinder/internal/intent"
	"github.com/reop/addressfinder/internal/session"
)

// HistoryReader reads the durable selection log (optional).
type HistoryReader interface {
	Selections(ctx context.Context, sessionID string, limit int) ([]session.SelectionHistoryEntry, error)
}

type SessionHandler struct {
	sessions *session.Manager
	finder   *finder.Service
	audit    HistoryReader
}

func NewSessionHandler(sessions *session.Manager, svc *finder.Service) *SessionHandler {
	return &SessionHandler{sessions: sessions, finder: svc}
}

// WithAudit enables ?source=audit on the history endpoint.
func (h *SessionHandler) WithAudit(r HistoryReader) *SessionHandler {
	h.audit = r
	return h
}

func SetupSessionRoutes(router fiber.Router, h *SessionHandler) {
	router.Post("/", h.Create)
	router.Get("/:id", h.Get)
	router.Delete("/:id", h.Delete)
	router.Put("/:id/query", h.SetQuery)
	router.Post("/:id/search", h.Search)
	router.Post("/:id/select", h.Select)
	router.Post("/:id/rural/accept", h.AcceptRural)
	router.Post("/:id/rural/cancel", h.CancelRural)
	router.Post("/:id/clear", h.Clear)
	router.Post("/:id/voice", h.SetVoice)
	router.Get("/:id/history", h.History)
	router.Post("/:id/recall/search", h.RecallSearch)
	router.Post("/:id/recall/selection", h.RecallSelection)
}

type createSessionRequest struct {
	Mode string `json:"mode"`
}

type queryRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
}

type searchRequest struct {
	Query        string `json:"query"`
	Mode         string `json:"mode"`
	Autocomplete *bool  `json:"autocomplete"`
	MaxResults   int    `json:"max_results"`
}

type selectRequest struct {
	PlaceID string `json:"place_id"`
	Mode    string `json:"mode"`
}

type voiceRequest struct {
	Active bool `json:"active"`
}

type recallRequest struct {
	Index int `json:"index"`
}

func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	return nil
}

// modeOr parses s, falling back to the session's current mode when empty.
func modeOr(s string, sess *session.Session) session.Mode {
	if strings.TrimSpace(s) == "" {
		return sess.Mode()
	}
	return session.ParseMode(s)
}

func (h *SessionHandler) session(c *fiber.Ctx) (*session.Session, error) {
	return h.sessions.Get(c.Params("id"))
}

func (h *SessionHandler) Create(c *fiber.Ctx) error {
	var req createSessionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	sess := h.sessions.Create(session.ParseMode(req.Mode))
	return c.Status(fiber.StatusCreated).JSON(sess.Snapshot())
}

func (h *SessionHandler) Get(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(sess.Snapshot())
}

func (h *SessionHandler) Delete(c *fiber.Ctx) error {
	if err := h.sessions.Delete(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SetQuery records what the user typed (no search).
func (h *SessionHandler) SetQuery(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req queryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	sess.SetActiveSearch(req.Query, modeOr(req.Mode, sess))
	return c.JSON(sess.Snapshot())
}

func (h *SessionHandler) Search(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req searchRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Query) == "" {
		return finder.ErrEmptyQuery
	}

	mode := modeOr(req.Mode, sess)
	autocomplete := true
	if req.Autocomplete != nil {
		autocomplete = *req.Autocomplete
	}

	sess.SetActiveSearch(req.Query, mode)
	res, err := h.finder.Search(c.UserContext(), sess, finder.SearchRequest{
		Query:        req.Query,
		Mode:         mode,
		Autocomplete: autocomplete,
		MaxResults:   req.MaxResults,
	})
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *SessionHandler) Select(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req selectRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.PlaceID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "place_id is required")
	}

	out, err := h.finder.Select(c.UserContext(), sess, req.PlaceID, modeOr(req.Mode, sess))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *SessionHandler) AcceptRural(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	out, err := h.finder.AcceptRural(c.UserContext(), sess)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *SessionHandler) CancelRural(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	if err := h.finder.CancelRural(c.UserContext(), sess); err != nil {
		return err
	}
	return c.JSON(sess.Snapshot())
}

func (h *SessionHandler) Clear(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	sess.ClearSelectionAndSearch()
	return c.JSON(sess.Snapshot())
}

func (h *SessionHandler) SetVoice(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req voiceRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	sess.SetVoiceActive(req.Active)
	return c.JSON(sess.Snapshot())
}

// History returns the in-memory logs, or the durable selection log with
// ?source=audit.
func (h *SessionHandler) History(c *fiber.Ctx) error {
	id := c.Params("id")
	if c.Query("source") == "audit" {
		if h.audit == nil {
			return fiber.NewError(fiber.StatusNotImplemented, "History database is not configured")
		}
		selections, err := h.audit.Selections(c.UserContext(), id, c.QueryInt("limit", 0))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"selections": selections})
	}

	sess, err := h.sessions.Get(id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"searches":   sess.SearchHistory(),
		"selections": sess.SelectionHistory(),
	})
}

func (h *SessionHandler) RecallSearch(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req recallRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.finder.RecallSearch(c.UserContext(), sess, req.Index)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *SessionHandler) RecallSelection(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req recallRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	sel, err := h.finder.RecallSelection(c.UserContext(), sess, req.Index)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"selection": sel,
		"state":     sess.Snapshot(),
	})
}

type classifyRequest struct {
	Query string `json:"query"`
}

// Classify runs the intent classifier on a query (no session).
func Classify(c *fiber.Ctx) error {
	var req classifyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"query":  req.Query,
		"intent": intent.Classify(req.Query),
		"state":  intent.ParseState(req.Query),
	})
}
