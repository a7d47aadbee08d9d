// Command aca-py runs the in-memory agent fake for local development. With
// HOLDER_DELAY set it also plays the holder: invitations and offers are
// accepted after the delay and the issuer is notified through its webhook.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"idmanager/pkg/testutil/fakeagent"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	port := getEnv("PORT", "8021")

	opts := []fakeagent.Option{
		fakeagent.WithLogger(logger),
		fakeagent.WithAPIKey(os.Getenv("API_KEY")),
		fakeagent.WithWebhook(getEnv("WEBHOOK_URL", "http://localhost:8080"), os.Getenv("WEBHOOK_API_KEY")),
		fakeagent.WithLatency(getEnvDuration("LATENCY", 0)),
	}
	if d := getEnvDuration("HOLDER_DELAY", 0); d > 0 {
		opts = append(opts, fakeagent.WithAutoHolder(d))
	}
	agent := fakeagent.New(opts...)

	// SCHEMAS="schema-id=attr1|attr2,other-id=attr"
	for _, entry := range strings.Split(os.Getenv("SCHEMAS"), ",") {
		id, attrs, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || id == "" {
			continue
		}
		agent.AddSchema(id, strings.Split(attrs, "|")...)
	}

	logger.Info("fake agent starting", "port", port)
	srv := &http.Server{Addr: ":" + port, Handler: agent.Handler(), ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("fake agent stopped", "error", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, defaultValue.String()))
	if err != nil {
		return defaultValue
	}
	return d
}
