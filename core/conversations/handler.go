package conversations

import (
	"errors"
	"strings"

	"github.com/mudler/remindbot/core/scheduler"
	"github.com/mudler/xlog"
)

// Callback values carried by menu buttons.
const (
	ActionSetReminder   = "set_reminder"
	ActionListReminders = "list_reminders"
	ActionMainMenu      = "main_menu"
	actionDeletePrefix  = "delete_"
	actionRepeatPrefix  = "repeat_"
)

const (
	textMainMenu      = "📌 Main menu:"
	textNoReminders   = "📋 You have no reminders."
	textReminderList  = "📋 Your reminders (tap one to delete it):"
	textDeleted       = "🗑 Reminder deleted."
	textNothingCancel = "Nothing to cancel: that reminder is gone already."
	textListFailed    = "⚠ Could not read your reminders, try again later."
	promptTime        = "⏰ Enter the time in HH:MM format:"
	promptTask        = "✏️ What should I remind you about?"
	promptRepeat      = "🔄 How should the reminder repeat?"
	errTimeFormat     = "⚠ Invalid time format! Use HH:MM"
	errEmptyTask      = "⚠ The reminder text cannot be empty."
	errPolicy         = "⚠ Pick one of the options below."
	errCreate         = "⚠ Could not create the reminder, try again later."
	warnNotPersisted  = "⚠ The reminder is active but could not be saved: it will be lost if the bot restarts."
	warnNotRemoved    = "⚠ The change could not be saved: the reminder may come back if the bot restarts."
)

var policyLabels = map[scheduler.Policy]string{
	scheduler.PolicyDaily:    "🔁 Daily",
	scheduler.PolicyOnce:     "1️⃣ Once",
	scheduler.PolicyWeekdays: "📅 Weekdays",
	scheduler.PolicyWeekends: "🏖 Weekends",
}

// Button is one inline button: the label shown and the value sent back.
type Button struct {
	Text string
	Data string
}

// Response is what a transport renders after each input: a text and an
// optional keyboard, one slice per row.
type Response struct {
	Text    string
	Buttons [][]Button
}

// ListEntry is one line of a rendered reminder list.
type ListEntry struct {
	DisplayText    string
	CancelActionID string
}

// Scheduler is what the handler needs from the reminder scheduler.
type Scheduler interface {
	Creator
	Cancel(ownerID int64, id string) error
	List(ownerID int64) ([]*scheduler.Reminder, error)
}

// Handler maps transport-neutral inputs to responses. Transports feed it
// text messages and button callbacks and render what it returns.
type Handler struct {
	scheduler Scheduler
	flow      *Flow
}

func NewHandler(s Scheduler, opts ...FlowOption) *Handler {
	return &Handler{
		scheduler: s,
		flow:      NewFlow(s, opts...),
	}
}

func (h *Handler) Flow() *Flow {
	return h.flow
}

// HandleMessage processes a typed message.
func (h *Handler) HandleMessage(ownerID int64, text string) Response {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "/start", "/menu":
		h.flow.Reset(ownerID)
		return h.RenderMainMenu(ownerID)
	case "/list":
		h.flow.Reset(ownerID)
		return h.renderList(ownerID)
	case "/new", "/remind":
		return h.flow.Start(ownerID)
	}

	if resp, ok := h.flow.Input(ownerID, text); ok {
		return resp
	}
	return h.RenderMainMenu(ownerID)
}

// HandleCallback processes a button press.
func (h *Handler) HandleCallback(ownerID int64, data string) Response {
	switch {
	case data == ActionSetReminder:
		return h.flow.Start(ownerID)

	case data == ActionListReminders:
		h.flow.Reset(ownerID)
		return h.renderList(ownerID)

	case data == ActionMainMenu:
		h.flow.Reset(ownerID)
		return h.RenderMainMenu(ownerID)

	case strings.HasPrefix(data, actionDeletePrefix):
		h.flow.Reset(ownerID)
		return h.cancel(ownerID, strings.TrimPrefix(data, actionDeletePrefix))

	case strings.HasPrefix(data, actionRepeatPrefix):
		if h.flow.Step(ownerID) != StepAwaitingRepeat {
			return h.RenderMainMenu(ownerID)
		}
		if resp, ok := h.flow.Input(ownerID, data); ok {
			return resp
		}
	}

	xlog.Debug("Unhandled callback", "owner", ownerID, "data", data)
	return h.RenderMainMenu(ownerID)
}

// RenderMainMenu returns the entry menu.
func (h *Handler) RenderMainMenu(ownerID int64) Response {
	return Response{Text: textMainMenu, Buttons: mainMenuKeyboard()}
}

// RenderReminderList returns one entry per pending reminder of the owner,
// ordered by next fire time.
func (h *Handler) RenderReminderList(ownerID int64) ([]ListEntry, error) {
	reminders, err := h.scheduler.List(ownerID)
	if err != nil {
		return nil, err
	}
	entries := make([]ListEntry, 0, len(reminders))
	for _, r := range reminders {
		entries = append(entries, ListEntry{
			DisplayText:    "🗑 " + r.Label(),
			CancelActionID: actionDeletePrefix + r.ID,
		})
	}
	return entries, nil
}

func (h *Handler) renderList(ownerID int64) Response {
	entries, err := h.RenderReminderList(ownerID)
	if err != nil {
		xlog.Error("Failed to list reminders", "owner", ownerID, "error", err)
		return Response{Text: textListFailed, Buttons: backKeyboard()}
	}
	if len(entries) == 0 {
		return Response{Text: textNoReminders, Buttons: backKeyboard()}
	}

	rows := make([][]Button, 0, len(entries)+1)
	for _, e := range entries {
		rows = append(rows, []Button{{Text: e.DisplayText, Data: e.CancelActionID}})
	}
	rows = append(rows, backKeyboard()...)
	return Response{Text: textReminderList, Buttons: rows}
}

func (h *Handler) cancel(ownerID int64, id string) Response {
	err := h.scheduler.Cancel(ownerID, id)
	switch {
	case err == nil:
		return Response{Text: textDeleted + "\n\n" + textMainMenu, Buttons: mainMenuKeyboard()}
	case errors.Is(err, scheduler.ErrPersistence):
		return Response{Text: textDeleted + "\n" + warnNotRemoved + "\n\n" + textMainMenu, Buttons: mainMenuKeyboard()}
	case errors.Is(err, scheduler.ErrNotFound):
		return Response{Text: textNothingCancel + "\n\n" + textMainMenu, Buttons: mainMenuKeyboard()}
	default:
		xlog.Error("Failed to cancel reminder", "owner", ownerID, "reminder_id", id, "error", err)
		return Response{Text: textListFailed, Buttons: mainMenuKeyboard()}
	}
}

func mainMenuKeyboard() [][]Button {
	return [][]Button{
		{{Text: "🕒 Set a reminder", Data: ActionSetReminder}},
		{{Text: "📋 My reminders", Data: ActionListReminders}},
	}
}

func backKeyboard() [][]Button {
	return [][]Button{{{Text: "↩ Back to start", Data: ActionMainMenu}}}
}

func policyKeyboard() [][]Button {
	rows := make([][]Button, 0, len(scheduler.Policies)+1)
	for _, p := range scheduler.Policies {
		rows = append(rows, []Button{{Text: policyLabels[p], Data: actionRepeatPrefix + string(p)}})
	}
	return append(rows, backKeyboard()...)
}
