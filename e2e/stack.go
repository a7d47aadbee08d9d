package e2e

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"idmanager/internal/agent"
	"idmanager/internal/issuance/crafter"
	"idmanager/internal/issuance/handler"
	"idmanager/internal/issuance/lock"
	"idmanager/internal/issuance/metrics"
	"idmanager/internal/issuance/notify"
	"idmanager/internal/issuance/service"
	"idmanager/internal/issuance/store"
	"idmanager/internal/issuance/webhook"
	"idmanager/internal/issuance/workflow"
	"idmanager/internal/platform/health"
	httptransport "idmanager/internal/transport/http"
	"idmanager/pkg/platform/middleware/request"
	"idmanager/pkg/testutil/fakeagent"
)

const (
	adminToken = "e2e-admin-token"
	agentKey   = "e2e-agent-key"
	webhookKey = "e2e-webhook-key"
)

// stack is an issuer and a fake agent wired to each other over real HTTP.
// Offers are created inside the webhook delivery, so holder steps observe
// their effects as soon as they return.
type stack struct {
	issuer   *httptest.Server
	agentSrv *httptest.Server
	agent    *fakeagent.Agent
}

func startStack() *stack {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	fake := fakeagent.New(fakeagent.WithAPIKey(agentKey), fakeagent.WithLogger(log))
	agentSrv := httptest.NewServer(fake.Handler())

	issuer := httptest.NewUnstartedServer(nil)
	siteURL := "http://" + issuer.Listener.Addr().String()

	reg := prometheus.NewRegistry()
	st := store.NewInMemoryStore()
	client := agent.NewClient(agent.Config{BaseURL: agentSrv.URL, APIKey: agentKey, Timeout: 5 * time.Second})
	m := metrics.New(reg)
	engine := workflow.NewEngine(st, client, crafter.NewRegistry(nil, crafter.Builtins(time.Now)),
		workflow.WithLogger(log),
		workflow.WithMetrics(m),
		workflow.WithLocker(lock.NewLocalLocker()),
	)
	scheduler := webhook.NewBlockingScheduler(engine, 0, log, m)
	dispatcher := webhook.NewDispatcher(engine, scheduler,
		webhook.WithDispatcherLogger(log),
		webhook.WithDispatcherMetrics(m),
	)
	svc := service.New(st, engine, client,
		service.WithLogger(log),
		service.WithNotifier(notify.NewLogNotifier(log)),
		service.WithSiteURL(siteURL),
	)

	issuer.Config.Handler = httptransport.NewRouter(httptransport.Config{
		Issuance:   handler.New(svc, siteURL, log),
		Webhooks:   webhook.NewHandler(dispatcher, webhookKey, log, m),
		Health:     health.New("test"),
		AdminToken: adminToken,
		Gatherer:   reg,
		Metrics:    request.NewMetrics(reg),
		Logger:     log,
	})
	issuer.Start()
	fake.SetWebhook(issuer.URL, webhookKey)

	return &stack{issuer: issuer, agentSrv: agentSrv, agent: fake}
}

func (s *stack) close() {
	s.agent.Wait()
	s.issuer.Close()
	s.agentSrv.Close()
}
