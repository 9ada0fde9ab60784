package webui

import (
	"crypto/subtle"
	"errors"

	"github.com/dave-gray101/v2keyauth"
	fiber "github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/mudler/xlog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (app *App) registerRoutes(webapp *fiber.App) {

	webapp.Get("/healthz", func(c *fiber.Ctx) error {
		return statusJSONMessage(c, "ok")
	})
	webapp.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	if app.config.Webhook != nil && app.config.WebhookPath != "" {
		webapp.Post(app.config.WebhookPath, adaptor.HTTPHandlerFunc(app.config.Webhook))
		xlog.Info("Webhook endpoint registered", "path", app.config.WebhookPath)
	}

	if app.config.Scheduler == nil {
		return
	}

	api := webapp.Group("/api")
	if len(app.config.ApiKeys) > 0 {
		kaConfig, err := GetKeyAuthConfig(app.config.ApiKeys)
		if err != nil || kaConfig == nil {
			panic(err)
		}
		api.Use(v2keyauth.New(*kaConfig))
	}

	api.Get("/reminders/:owner", app.ListReminders())
	api.Post("/reminders/:owner", app.CreateReminder())
	api.Delete("/reminders/:owner/:id", app.DeleteReminder())
}

func GetKeyAuthConfig(apiKeys []string) (*v2keyauth.Config, error) {
	customLookup, err := v2keyauth.MultipleKeySourceLookup([]string{"header:Authorization", "header:x-api-key"}, keyauth.ConfigDefault.AuthScheme)
	if err != nil {
		return nil, err
	}

	return &v2keyauth.Config{
		CustomKeyLookup: customLookup,
		Next:            func(c *fiber.Ctx) bool { return false },
		Validator:       getApiKeyValidationFunction(apiKeys),
		ErrorHandler:    getApiKeyErrorHandler(apiKeys),
		AuthScheme:      "Bearer",
	}, nil
}

func getApiKeyErrorHandler(apiKeys []string) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		if errors.Is(err, v2keyauth.ErrMissingOrMalformedAPIKey) {
			if len(apiKeys) == 0 {
				return ctx.Next()
			}
			ctx.Set("WWW-Authenticate", "Bearer")
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing or invalid API key",
			})
		}
		return ctx.SendStatus(fiber.StatusInternalServerError)
	}
}

func getApiKeyValidationFunction(apiKeys []string) func(*fiber.Ctx, string) (bool, error) {

	return func(ctx *fiber.Ctx, apiKey string) (bool, error) {
		if len(apiKeys) == 0 {
			return true, nil
		}
		for _, validKey := range apiKeys {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
				return true, nil
			}
		}
		return false, v2keyauth.ErrMissingOrMalformedAPIKey
	}

}
