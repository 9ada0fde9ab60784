package webui

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/mudler/remindbot/core/scheduler"
	"github.com/mudler/xlog"
)

type (
	App struct {
		config *Config
		*fiber.App
	}
)

func NewApp(opts ...Option) *App {
	config := NewConfig(opts...)

	webapp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	a := &App{
		config: config,
		App:    webapp,
	}

	a.registerRoutes(webapp)

	return a
}

type reminderJSON struct {
	ID         string    `json:"id"`
	OwnerID    int64     `json:"owner_id"`
	Text       string    `json:"text"`
	Time       string    `json:"time"`
	Policy     string    `json:"policy"`
	NextFireAt time.Time `json:"next_fire_at"`
	State      string    `json:"state"`
	Label      string    `json:"label"`
	Warning    string    `json:"warning,omitempty"`
}

func toJSON(r *scheduler.Reminder) reminderJSON {
	return reminderJSON{
		ID:         r.ID,
		OwnerID:    r.OwnerID,
		Text:       r.Text,
		Time:       r.TimeOfDay.String(),
		Policy:     string(r.Policy),
		NextFireAt: r.NextFireAt,
		State:      string(r.State),
		Label:      r.Label(),
	}
}

func (a *App) ListReminders() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		owner, err := ownerParam(c)
		if err != nil {
			return badRequest(c, err.Error())
		}

		reminders, err := a.config.Scheduler.List(owner)
		if err != nil {
			xlog.Error("Error listing reminders", "owner", owner, "error", err)
			return errorJSONMessage(c, err.Error())
		}

		out := make([]reminderJSON, 0, len(reminders))
		for _, r := range reminders {
			out = append(out, toJSON(r))
		}
		return c.JSON(out)
	}
}

func (a *App) CreateReminder() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		owner, err := ownerParam(c)
		if err != nil {
			return badRequest(c, err.Error())
		}

		payload := struct {
			Time   string `json:"time"`
			Text   string `json:"text"`
			Policy string `json:"policy"`
		}{}
		if err := c.BodyParser(&payload); err != nil {
			return badRequest(c, "invalid request body")
		}

		tod, err := scheduler.ParseTimeOfDay(payload.Time)
		if err != nil {
			return badRequest(c, err.Error())
		}
		if payload.Policy == "" {
			payload.Policy = string(scheduler.PolicyOnce)
		}
		policy, err := scheduler.ParsePolicy(payload.Policy)
		if err != nil {
			return badRequest(c, err.Error())
		}

		r, err := a.config.Scheduler.Create(owner, payload.Text, tod, policy)
		switch {
		case err == nil:
			return c.Status(fiber.StatusCreated).JSON(toJSON(r))
		case errors.Is(err, scheduler.ErrPersistence) && r != nil:
			out := toJSON(r)
			out.Warning = err.Error()
			return c.Status(fiber.StatusCreated).JSON(out)
		case errors.Is(err, scheduler.ErrValidation):
			return badRequest(c, err.Error())
		default:
			xlog.Error("Error creating reminder", "owner", owner, "error", err)
			return errorJSONMessage(c, err.Error())
		}
	}
}

func (a *App) DeleteReminder() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		owner, err := ownerParam(c)
		if err != nil {
			return badRequest(c, err.Error())
		}

		err = a.config.Scheduler.Cancel(owner, c.Params("id"))
		switch {
		case err == nil, errors.Is(err, scheduler.ErrPersistence):
			return statusJSONMessage(c, "deleted")
		case errors.Is(err, scheduler.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Reminder not found",
			})
		default:
			xlog.Error("Error cancelling reminder", "owner", owner, "reminder_id", c.Params("id"), "error", err)
			return errorJSONMessage(c, err.Error())
		}
	}
}

func ownerParam(c *fiber.Ctx) (int64, error) {
	owner, err := strconv.ParseInt(c.Params("owner"), 10, 64)
	if err != nil {
		return 0, errors.New("owner must be a numeric chat id")
	}
	return owner, nil
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(http.StatusBadRequest).JSON(struct {
		Error string `json:"error"`
	}{Error: message})
}

func errorJSONMessage(c *fiber.Ctx, message string) error {
	return c.Status(http.StatusInternalServerError).JSON(struct {
		Error string `json:"error"`
	}{Error: message})
}

func statusJSONMessage(c *fiber.Ctx, message string) error {
	return c.JSON(struct {
		Status string `json:"status"`
	}{Status: message})
}
