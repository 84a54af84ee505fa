package server

import (
	"context"
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/auto-reply/internal/attachments"
	"github.com/ziadkadry99/auto-reply/internal/channels"
	"github.com/ziadkadry99/auto-reply/internal/companies"
	"github.com/ziadkadry99/auto-reply/internal/config"
	"github.com/ziadkadry99/auto-reply/internal/conversations"
	"github.com/ziadkadry99/auto-reply/internal/customers"
	"github.com/ziadkadry99/auto-reply/internal/db"
	"github.com/ziadkadry99/auto-reply/internal/embeddings"
	"github.com/ziadkadry99/auto-reply/internal/energy"
	"github.com/ziadkadry99/auto-reply/internal/llm"
	"github.com/ziadkadry99/auto-reply/internal/mailer"
	"github.com/ziadkadry99/auto-reply/internal/metrics"
	"github.com/ziadkadry99/auto-reply/internal/orchestrator"
	"github.com/ziadkadry99/auto-reply/internal/personality"
	"github.com/ziadkadry99/auto-reply/internal/responder"
	"github.com/ziadkadry99/auto-reply/internal/retrieval"
	"github.com/ziadkadry99/auto-reply/internal/vectordb"
	"github.com/ziadkadry99/auto-reply/internal/workflows"
)

// Stack holds the collaborators built from configuration. Images, Mailer,
// Metrics and Energy may be nil.
type Stack struct {
	Config   *config.Config
	DB       *db.DB
	Provider llm.Provider
	Embedder embeddings.Embedder
	Index    vectordb.Index
	Images   embeddings.ImageEmbedder
	Sessions retrieval.SessionStore
	Mailer   mailer.Mailer
	Metrics  metrics.Metrics
	Energy   energy.Tracker
}

// App is the assembled service: HTTP server, reply orchestrator and the
// dispatcher running it.
type App struct {
	Server       *Server
	Orchestrator *orchestrator.Orchestrator
	Dispatcher   *orchestrator.Dispatcher
	Intake       *orchestrator.Intake
	Gateway      *channels.Gateway
	Web          *channels.WebHub
}

// NewApp wires every store, channel and route onto a new server.
func NewApp(st Stack) (*App, error) {
	cfg := st.Config
	if cfg == nil || st.DB == nil || st.Provider == nil || st.Embedder == nil || st.Index == nil {
		return nil, fmt.Errorf("config, database, provider, embedder and index are required")
	}
	m := st.Metrics
	if m == nil {
		m = metrics.Noop{}
	}
	sessions := st.Sessions
	if sessions == nil {
		sessions = retrieval.NewMemorySessionStore()
	}

	companyStore := companies.NewStore(st.DB)
	convStore := conversations.NewStore(st.DB)
	customerStore := customers.NewStore(st.DB)
	personalityStore := personality.NewStore(st.DB)
	workflowStore := workflows.NewStore(st.DB)
	fileStore := attachments.NewStore(st.DB)

	pipeline := retrieval.NewPipeline(st.Embedder, st.Index, sessions, fileStore,
		retrieval.NewFeatureRanker(st.Provider, cfg.Model),
		retrieval.Options{
			FetchLimit:       cfg.Retrieval.FetchLimit,
			TopK:             cfg.Retrieval.TopK,
			Lambda:           cfg.Retrieval.Lambda,
			ClarifyThreshold: cfg.Retrieval.ClarifyThreshold,
		}, m)
	genOpts := responder.Options{
		Model:         cfg.Model,
		Temperature:   cfg.LLM.Temperature,
		MaxToolRounds: cfg.LLM.MaxToolRounds,
	}
	generator := responder.NewGenerator(st.Provider, genOpts, responder.Deps{
		Retriever: pipeline,
		Lookup:    pipeline,
		Files:     fileStore,
		Customers: customerStore,
		Linker:    convStore,
		Metrics:   m,
	})

	gateway := channels.NewGateway(m)
	web := channels.NewWebHub(nil, cfg.Channels.PublicBaseURL)
	gateway.Register(companies.PlatformWeb, web)
	if cfg.Channels.WhatsAppBotURL != "" {
		gateway.Register(companies.PlatformWhatsApp, channels.NewWhatsAppBot(cfg.Channels.WhatsAppBotURL, cfg.Channels.PublicBaseURL))
	}
	waca := channels.NewWACA(cfg.Channels.WACAGraphURL, cfg.Channels.PublicBaseURL)
	gateway.Register(companies.PlatformWACA, waca)

	deps := orchestrator.Deps{
		Companies:     companyStore,
		Conversations: convStore,
		Workflows:     workflowStore,
		Engine: workflows.NewEngine(convStore, attachments.WorkflowFiles{Root: cfg.Workflows.FilesDir}, workflows.Options{
			MaxDelay: cfg.MaxDelay(),
			Metrics:  m,
		}),
		Profiles:  personality.NewResolver(personalityStore, cfg.LLM.Capabilities),
		Generator: generator,
		Combiner:  responder.NewCombiner(st.Provider, genOpts),
		Delivery:  gateway,
		Mailer:    st.Mailer,
		Energy:    st.Energy,
		Metrics:   m,
	}
	if st.Images != nil {
		deps.ImageSearch = responder.NewImageSearcher(st.Images, st.Index, 0, cfg.ImageEmbedding.MatchField)
	}
	orch := orchestrator.New(deps)

	dispatcher := orchestrator.NewDispatcher(cfg.Workers.Count, cfg.Workers.QueueSize, cfg.JobTimeout())
	intake := orchestrator.NewIntake(orch, dispatcher)
	web.SetReceiver(intake)

	srv := New(Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		Timeout:   time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		FilesRoot: ".",
		AllowAll:  true,
	}, st.DB)

	srv.API(func(r chi.Router) {
		companies.RegisterRoutes(r, companyStore)
		conversations.RegisterRoutes(r, convStore)
		personality.RegisterRoutes(r, personalityStore)
		workflows.RegisterRoutes(r, workflowStore)
	})
	channels.RegisterRoutes(srv.Router(), web,
		channels.NewWhatsAppWebhook(intake),
		channels.NewWACAWebhook(waca, companyStore, intake, cfg.Channels.WACAVerifyToken))

	return &App{
		Server:       srv,
		Orchestrator: orch,
		Dispatcher:   dispatcher,
		Intake:       intake,
		Gateway:      gateway,
		Web:          web,
	}, nil
}

// Shutdown stops accepting requests, then drains queued replies.
func (a *App) Shutdown(ctx context.Context) error {
	if err := a.Server.Shutdown(ctx); err != nil {
		return err
	}
	return a.Dispatcher.Stop(ctx)
}
