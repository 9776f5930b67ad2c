// ABOUTME: CLI entrypoint for masesrv with run and server modes.
// ABOUTME: Wires together persona store, LLM/embedding clients, scheduler, session log, and controller.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m3data/mase-engine/analysis"
	"github.com/m3data/mase-engine/embedding"
	"github.com/m3data/mase-engine/engine"
	"github.com/m3data/mase-engine/llm"
	"github.com/m3data/mase-engine/persona"
	"github.com/m3data/mase-engine/scheduler"
	"github.com/m3data/mase-engine/server"
	"github.com/m3data/mase-engine/session"
)

var version = "dev"

type config struct {
	serverMode    bool
	bind          string
	allowRemote   bool
	authToken     string
	resumeID      string
	maxTurns      int
	seed          int64
	dataDir       string
	backendURL    string
	model         string
	verbose       bool
	showVersion   bool
	ensemblePath  string
	provocation   string
}

func main() {
	loadDotEnvAuto()

	if setupCfg, isSetup := parseSetupArgs(os.Args[1:]); isSetup {
		os.Exit(runSetup(setupCfg))
	}

	cfg := parseFlags()

	if cfg.showVersion {
		fmt.Printf("masesrv %s\n", version)
		os.Exit(0)
	}

	os.Exit(run(cfg))
}

func parseFlags() config {
	var cfg config

	fs := flag.NewFlagSet("masesrv", flag.ContinueOnError)
	fs.BoolVar(&cfg.serverMode, "server", false, "Start the REST control surface")
	fs.StringVar(&cfg.bind, "bind", "", "Bind address (default: 127.0.0.1:8787 or MASE_BIND)")
	fs.BoolVar(&cfg.allowRemote, "allow-remote", false, "Permit a non-loopback -bind")
	fs.StringVar(&cfg.authToken, "auth-token", "", "Bearer token required on every request")
	fs.StringVar(&cfg.resumeID, "resume", "", "Resume a session from its last checkpoint")
	fs.IntVar(&cfg.maxTurns, "max-turns", 0, "Override the ensemble config's max_turns")
	fs.Int64Var(&cfg.seed, "seed", 1, "Scheduler seed")
	fs.StringVar(&cfg.dataDir, "data-dir", "", "Persistent state directory (default: $XDG_DATA_HOME/mase-engine)")
	fs.StringVar(&cfg.backendURL, "backend-url", "", "Override the LLM backend base URL")
	fs.StringVar(&cfg.model, "model", "", "Override the default model")
	fs.BoolVar(&cfg.verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	fs.Usage = func() {
		printHelp(os.Stderr, version)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	args := fs.Args()
	if len(args) > 0 && args[0] == "run" {
		args = args[1:]
	}
	if len(args) > 0 {
		cfg.ensemblePath = args[0]
	}
	if len(args) > 1 {
		cfg.provocation = args[1]
	}

	return cfg
}

func run(cfg config) int {
	envCfg, err := server.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if cfg.bind != "" {
		envCfg.Bind = cfg.bind
	}
	if cfg.allowRemote {
		envCfg.AllowRemote = true
	}
	if cfg.authToken != "" {
		envCfg.AuthToken = cfg.authToken
	}
	if cfg.backendURL != "" {
		envCfg.DefaultBackendURL = cfg.backendURL
	}
	if cfg.model != "" {
		envCfg.DefaultModel = cfg.model
	}
	if cfg.dataDir != "" {
		envCfg.Home = cfg.dataDir
	}
	cfg.dataDir = envCfg.Home

	if cfg.serverMode {
		return runServer(cfg, envCfg)
	}

	if cfg.ensemblePath == "" {
		printHelp(os.Stderr, version)
		return 0
	}
	return runOneSession(cfg, envCfg)
}

// buildCollaborators wires the LLM client, embedding client, persona store,
// and a fresh scheduler for one ensemble config. Shared by run and server
// session-creation paths.
func buildCollaborators(envCfg server.Config, ens engine.EnsembleConfig, dataDir string) (*llm.Client, *embedding.Client, map[string]engine.AgentBinding, []persona.Participant, error) {
	store, err := persona.LoadStore(dataDir)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load persona store: %w", err)
	}

	llmClient := llm.NewClient(envCfg.DefaultBackendURL)
	embedModel := envCfg.DefaultModel
	embedClient := embedding.NewClientFunc(func(ctx context.Context, text string) ([]float32, error) {
		return llmClient.Embeddings(ctx, embedModel, text)
	})

	catalogCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	catalog, err := llm.FetchCatalog(catalogCtx, llmClient)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("LLM backend unavailable: %w", err)
	}

	bindings := make(map[string]engine.AgentBinding, len(ens.AgentOrder))
	roster := make([]persona.Participant, 0, len(ens.AgentOrder))
	for _, id := range ens.AgentOrder {
		p, ok := store.Persona(id)
		if !ok {
			return nil, nil, nil, nil, fmt.Errorf("no persona document for agent %q", id)
		}
		tmpl, ok := store.PersonaTemplate(p)
		if !ok {
			return nil, nil, nil, nil, fmt.Errorf("persona %q references unknown template %q", id, p.TemplateID)
		}
		agentCfg := ens.Agents[id]
		model := agentCfg.Model
		if model == "" {
			model = envCfg.DefaultModel
		}
		if catalog.Get(model) == nil {
			return nil, nil, nil, nil, fmt.Errorf("model %q for agent %q is not in the backend catalog", model, id)
		}
		bindings[id] = engine.AgentBinding{
			Persona:         p,
			Template:        tmpl,
			ModelID:         model,
			BaseTemperature: agentCfg.Temperature,
		}
		roster = append(roster, persona.Participant{ID: id, DisplayName: p.Name})
	}

	return llmClient, embedClient, bindings, roster, nil
}

func runOneSession(cfg config, envCfg server.Config) int {
	ens, err := loadEnsembleConfig(cfg.ensemblePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if cfg.maxTurns > 0 {
		ens.Dialogue.MaxTurns = cfg.maxTurns
	}

	llmClient, embedClient, bindings, roster, err := buildCollaborators(envCfg, ens, cfg.dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	sessionID := cfg.resumeID
	var logger *session.Log
	if sessionID != "" {
		path := fmt.Sprintf("%s/session_%s_checkpoint.json", cfg.dataDir, sessionID)
		rec, err := session.LoadCheckpoint(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: resume %s: %v\n", sessionID, err)
			return 1
		}
		logger = session.Resume(cfg.dataDir, rec)
		if cfg.provocation == "" {
			cfg.provocation = rec.ProvocationText
		}
		if rec.Seed != 0 {
			cfg.seed = rec.Seed
		}
	} else {
		sessionID = server.NewSessionID()
		models := make(map[string]string, len(bindings))
		temps := make(map[string]float64, len(bindings))
		for id, b := range bindings {
			models[id] = b.ModelID
			temps[id] = b.BaseTemperature
		}
		logger, err = session.Start(cfg.dataDir, sessionID, session.Mode(ens.Mode), "", cfg.provocation, cfg.seed, session.EmbeddingInline, models, temps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: start session: %v\n", err)
			return 1
		}
	}

	bus := engine.NewBus(256)
	sched := scheduler.New(ens.Roster(), cfg.seed, 1, ens.HumanAliases...)
	// Bring the scheduler's counts and cooldown ring back to the state
	// they had at the checkpoint boundary before generating new turns.
	for _, turn := range logger.History() {
		sched.ReplaySelection(turn.AgentID)
	}
	warmth := engine.NewWarmthManager(llmClient, 30*time.Second)

	ctrl := engine.New(engine.Config{
		Bus:              bus,
		Log:              logger,
		Scheduler:        sched,
		LLM:              llmClient,
		Embed:            embedClient,
		Warmth:           warmth,
		Analyzer:         analysis.NewStreamingAnalyzer(5),
		Bindings:         bindings,
		Roster:           roster,
		HumanDisplayName: "Human",
		Provocation:      cfg.provocation,
		Dialogue:         ens.Dialogue,
	})

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	go printEvents(bus, cfg.verbose)

	if err := ctrl.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Printf("session %s complete\n", sessionID)
	return 0
}

func printEvents(bus *engine.Bus, verbose bool) {
	cursor := bus.Cursor()
	for {
		e, next, ok := bus.Read(context.Background(), cursor, time.Second)
		if !ok {
			continue
		}
		cursor = next
		switch e.Type {
		case engine.EventTurn:
			fmt.Printf("[%s] %s\n", e.Turn.AgentName, e.Turn.Content)
		case engine.EventState:
			if verbose {
				fmt.Printf("(state: %s %s)\n", e.State.State, e.State.Message)
			}
			if e.State.State == engine.StateComplete {
				return
			}
		case engine.EventError:
			fmt.Fprintf(os.Stderr, "error: %s\n", e.Err.Message)
		}
	}
}

// newSessionFactory builds a server.CreateSessionFunc closure over the
// server's fixed data directory and LLM backend config, so POST
// /session/start can resolve a start request into a fully wired
// *server.Session.
func newSessionFactory(envCfg server.Config, cfg config) server.CreateSessionFunc {
	return func(req server.StartSessionRequest) (*server.Session, error) {
		ensemblePath := req.Config
		if ensemblePath == "" {
			ensemblePath = cfg.ensemblePath
		}
		if ensemblePath == "" {
			return nil, fmt.Errorf("no ensemble config: pass config in the request or start the server with one")
		}
		ens, err := loadEnsembleConfig(ensemblePath)
		if err != nil {
			return nil, err
		}
		if len(req.Personas) > 0 {
			ens.AgentOrder = req.Personas
		}
		if req.IncludeHuman {
			ens.IncludeHuman = true
		}
		seed := cfg.seed
		if req.Seed != nil {
			seed = *req.Seed
		}

		llmClient, embedClient, bindings, roster, err := buildCollaborators(envCfg, ens, envCfg.Home)
		if err != nil {
			return nil, err
		}

		sessionID := server.NewSessionID()
		models := make(map[string]string, len(bindings))
		temps := make(map[string]float64, len(bindings))
		for id, b := range bindings {
			models[id] = b.ModelID
			temps[id] = b.BaseTemperature
		}
		logger, err := session.Start(envCfg.Home, sessionID, session.Mode(ens.Mode), "", req.Provocation, seed, session.EmbeddingInline, models, temps)
		if err != nil {
			return nil, fmt.Errorf("start session: %w", err)
		}

		bus := engine.NewBus(256)
		sched := scheduler.New(ens.Roster(), seed, 1, ens.HumanAliases...)
		warmth := engine.NewWarmthManager(llmClient, 30*time.Second)

		ctrl := engine.New(engine.Config{
			Bus:              bus,
			Log:              logger,
			Scheduler:        sched,
			LLM:              llmClient,
			Embed:            embedClient,
			Warmth:           warmth,
			Analyzer:         analysis.NewStreamingAnalyzer(5),
			Bindings:         bindings,
			Roster:           roster,
			HumanDisplayName: "Human",
			Provocation:      req.Provocation,
			Dialogue:         ens.Dialogue,
		})

		agents := make([]server.AgentInfo, 0, len(ens.AgentOrder))
		for _, id := range ens.AgentOrder {
			b := bindings[id]
			agents = append(agents, server.AgentInfo{
				ID:    id,
				Name:  b.Persona.Name,
				Color: b.Persona.Color,
				Model: b.ModelID,
			})
		}

		return &server.Session{
			ID:             sessionID,
			Controller:     ctrl,
			Bus:            bus,
			CheckpointPath: logger.CheckpointPath(),
			Agents:         agents,
		}, nil
	}
}

func runServer(cfg config, envCfg server.Config) int {
	if err := os.MkdirAll(envCfg.Home, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	idx, err := server.OpenSessionIndex(fmt.Sprintf("%s/sessions.db", envCfg.Home))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = idx.Close() }()

	store, err := persona.LoadStore(envCfg.Home)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	api := &server.API{
		Registry:      server.NewRegistry(),
		Index:         idx,
		Config:        envCfg,
		Personas:      store,
		Backend:       llm.NewClient(envCfg.DefaultBackendURL),
		Metrics:       server.NewMetrics(),
		CreateSession: newSessionFactory(envCfg, cfg),
	}
	handler := server.NewRouter(api)

	httpServer := &http.Server{Addr: envCfg.Bind, Handler: handler}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		_ = httpServer.Shutdown(context.Background())
	}()

	fmt.Printf("masesrv listening on %s\n", envCfg.Bind)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	<-ctx.Done()
	return 0
}
