package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"triage_server/core/service/schedule"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"
	"triage_server/pkg/security"
)

// Signed links older than this are rejected.
const defaultLinkTTL = 7 * 24 * time.Hour

// ActionHandler executes signed one-click commands embedded in brief
// emails: complete a todo, confirm or dismiss a calendar hold.
type ActionHandler struct {
	signer  *security.Signer
	actions *schedule.Actions
	linkTTL time.Duration
	log     *logger.Logger
}

func NewActionHandler(signer *security.Signer, actions *schedule.Actions) *ActionHandler {
	return &ActionHandler{
		signer:  signer,
		actions: actions,
		linkTTL: defaultLinkTTL,
		log:     logger.WithField("component", "action_handler"),
	}
}

// Register registers the command route. No auth middleware: the HMAC
// signature is the credential.
func (h *ActionHandler) Register(app *fiber.App) {
	app.Get("/api/cmd", h.Command)
}

func (h *ActionHandler) Command(c *fiber.Ctx) error {
	query := map[string]string{
		"owner":  c.Query("owner"),
		"action": c.Query("action"),
		"id":     c.Query("id"),
		"ts":     c.Query("ts"),
		"sig":    c.Query("sig"),
	}

	if !h.signer.Verify(query) {
		return apperr.Unauthorized("invalid signature")
	}

	tsMillis, err := strconv.ParseInt(query["ts"], 10, 64)
	if err != nil {
		return apperr.BadRequest("invalid timestamp")
	}
	if time.Since(time.UnixMilli(tsMillis)) > h.linkTTL {
		return apperr.Unauthorized("link expired")
	}

	ownerID, err := uuid.Parse(query["owner"])
	if err != nil {
		return apperr.BadRequest("invalid owner")
	}

	targetID, err := strconv.ParseInt(query["id"], 10, 64)
	if err != nil {
		return apperr.BadRequest("invalid target id")
	}

	if err := h.actions.Execute(c.Context(), ownerID, query["action"], targetID); err != nil {
		return err
	}

	h.log.WithFields(map[string]any{
		"owner_id": ownerID.String(),
		"action":   query["action"],
		"target":   targetID,
	}).Info("Action executed via signed link")

	// Links are clicked from email clients, so answer with a page.
	c.Type("html")
	return c.SendString(confirmationPage(query["action"]))
}

func confirmationPage(action string) string {
	var text string
	switch action {
	case schedule.ActionCompleteTodo:
		text = "Todo marked as done."
	case schedule.ActionConfirmEvent:
		text = "Event confirmed on your calendar."
	case schedule.ActionDismissEvent:
		text = "Event hold removed."
	default:
		text = "Done."
	}
	return "<!doctype html><html><body style=\"font-family:sans-serif;padding:40px\">" +
		"<h3>" + text + "</h3><p>You can close this tab.</p></body></html>"
}
