package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/reop/addressfinder/internal/agent"
	"github.com/reop/addressfinder/internal/session"
)

type ToolHandler struct {
	sessions *session.Manager
	tools    *agent.Toolkit
}

func NewToolHandler(sessions *session.Manager, tools *agent.Toolkit) *ToolHandler {
	return &ToolHandler{sessions: sessions, tools: tools}
}

// SetupToolRoutes registers the agent tool endpoints. The voice agent
// names its own session ids, so unknown ids start a voice session.
func SetupToolRoutes(router fiber.Router, h *ToolHandler, guard fiber.Handler) {
	router.Get("/tools", h.List)
	router.Post("/sessions/:id/tools/:name", guard, h.Call)
}

type toolRequest struct {
	Args map[string]any `json:"args"`
}

func (h *ToolHandler) List(c *fiber.Ctx) error {
	return c.JSON(agent.Definitions())
}

func (h *ToolHandler) Call(c *fiber.Ctx) error {
	var req toolRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	sess := h.sessions.GetOrCreate(c.Params("id"), session.ModeVoice)
	out, err := h.tools.Dispatch(c.UserContext(), sess, c.Params("name"), req.Args)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.SendString(out)
}
