package config_test

import (
	"path/filepath"
	"time"

	"github.com/mudler/remindbot/pkg/config"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LoadFrom", func() {
	It("applies defaults", func() {
		cfg, err := config.LoadFrom(map[string]string{})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.ListenAddr).To(Equal(":5000"))
		Expect(cfg.StateDir).To(Equal("./state"))
		Expect(cfg.Store).To(Equal(config.StoreJSON))
		Expect(cfg.DeliveryTimeout).To(Equal(10 * time.Second))
		Expect(cfg.DraftTTL).To(Equal(30 * time.Minute))
		Expect(cfg.Location()).To(Equal(time.Local))
		Expect(cfg.APIKeys).To(BeEmpty())
		Expect(cfg.StorePath()).To(Equal(filepath.Join("state", "reminders.json")))
	})

	It("reads prefixed variables", func() {
		cfg, err := config.LoadFrom(map[string]string{
			"REMINDBOT_TELEGRAM_TOKEN":   "123:abc",
			"REMINDBOT_TELEGRAM_ADMINS":  "alice, bob,",
			"REMINDBOT_STORE":            "SQLite",
			"REMINDBOT_STATE_DIR":        "/var/lib/remindbot",
			"REMINDBOT_TIMEZONE":         "Europe/Kyiv",
			"REMINDBOT_DELIVERY_TIMEOUT": "3s",
			"REMINDBOT_DRAFT_TTL":        "5m",
			"REMINDBOT_API_KEYS":         "k1,k2",
			"REMINDBOT_LISTEN_ADDR":      "127.0.0.1:8080",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.TelegramToken).To(Equal("123:abc"))
		Expect(cfg.TelegramAdmins).To(Equal([]string{"alice", "bob"}))
		Expect(cfg.Store).To(Equal(config.StoreSQLite))
		Expect(cfg.StorePath()).To(Equal("/var/lib/remindbot/reminders.db"))
		Expect(cfg.Location().String()).To(Equal("Europe/Kyiv"))
		Expect(cfg.DeliveryTimeout).To(Equal(3 * time.Second))
		Expect(cfg.DraftTTL).To(Equal(5 * time.Minute))
		Expect(cfg.APIKeys).To(Equal([]string{"k1", "k2"}))
		Expect(cfg.ListenAddr).To(Equal("127.0.0.1:8080"))
	})

	It("falls back to PORT for the listen address", func() {
		cfg, err := config.LoadFrom(map[string]string{"PORT": "10000"})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.ListenAddr).To(Equal(":10000"))
	})

	It("adds a scheme to bare webhook hosts", func() {
		cfg, err := config.LoadFrom(map[string]string{"REMINDBOT_WEBHOOK_URL": "bot.example.com/"})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.WebhookURL).To(Equal("https://bot.example.com"))

		cfg, err = config.LoadFrom(map[string]string{"REMINDBOT_WEBHOOK_URL": "http://localhost:5000"})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.WebhookURL).To(Equal("http://localhost:5000"))
	})

	DescribeTable("rejects invalid values",
		func(key, value string) {
			_, err := config.LoadFrom(map[string]string{key: value})
			Expect(err).To(HaveOccurred())
		},
		Entry("unknown store", "REMINDBOT_STORE", "redis"),
		Entry("unknown zone", "REMINDBOT_TIMEZONE", "Mars/Olympus"),
		Entry("bad duration", "REMINDBOT_DRAFT_TTL", "soon"),
		Entry("zero delivery timeout", "REMINDBOT_DELIVERY_TIMEOUT", "0s"),
	)
})
