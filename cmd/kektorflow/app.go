package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sanonone/kektorflow/internal/config"
	"github.com/sanonone/kektorflow/internal/logging"
	"github.com/sanonone/kektorflow/pkg/agent"
	"github.com/sanonone/kektorflow/pkg/cluster"
	"github.com/sanonone/kektorflow/pkg/embeddings"
	"github.com/sanonone/kektorflow/pkg/engine"
	"github.com/sanonone/kektorflow/pkg/llm"
	"github.com/sanonone/kektorflow/pkg/persistence"
	"github.com/sanonone/kektorflow/pkg/rag"
	"github.com/sanonone/kektorflow/pkg/tasks"
)

// app holds everything a command needs, built from the config.
type app struct {
	logger    *slog.Logger
	apis      *agent.APIManager
	store     *cluster.Store
	retrieval *tasks.RetrievalTask
	speech    *tasks.SpeechTask
	journal   *persistence.Journal
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	logger := logging.New("kektorflow")

	embedder, err := embeddings.New(ctx, cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	apis := &agent.APIManager{
		Embedder: embedder,
		Speech:   llm.NewClient(cfg.Speech.Config),
		AudioDir: cfg.Speech.OutputDir,
		Loader:   rag.NewAutoLoader(rag.WithLoaderLogger(logging.New("loader"))),
	}

	store, err := cluster.Open(cfg.Cluster)
	if err != nil {
		return nil, err
	}

	a := &app{logger: logger, apis: apis, store: store}

	observers := engine.MultiObserver{&engine.LogObserver{Logger: logging.New("engine")}}
	if cfg.Journal.Path != "" {
		a.journal, err = persistence.OpenJournal(cfg.Journal.Path,
			persistence.WithJournalLogger(logging.New("journal")),
			persistence.WithSyncInterval(cfg.Journal.SyncInterval))
		if err != nil {
			return nil, err
		}
		observers = append(observers, a.journal)
	}
	opts := []engine.Option{engine.WithMaxSteps(cfg.Engine.MaxSteps), engine.WithObserver(observers)}

	ag := agent.New(cfg.Splitter, logging.New("agent"))
	if a.retrieval, err = tasks.NewRetrievalTask(ag, logging.New("retrieval"), opts...); err != nil {
		return nil, errors.Join(err, a.Close())
	}
	if a.speech, err = tasks.NewSpeechTask(ag, logging.New("speech"), opts...); err != nil {
		return nil, errors.Join(err, a.Close())
	}
	return a, nil
}

func (a *app) Close() error {
	if a.journal == nil {
		return nil
	}
	return a.journal.Close()
}
