// Package retrieval keeps the embeddings of a DataCluster current and answers
// similarity queries against them.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sanonone/kektorflow/pkg/agent"
	"github.com/sanonone/kektorflow/pkg/core/types"
)

// ErrNoEmbeddings is returned when the embedding capability produced no chunks.
var ErrNoEmbeddings = errors.New("embedding capability returned no chunks")

// contentLoader is implemented by file references that can be filled from disk.
type contentLoader interface {
	SourcePath() string
	HasContent() bool
	SetContent(string)
}

// Synchronizer ensures every Embeddable reference in a cluster has chunks.
type Synchronizer struct {
	Generator agent.EmbeddingGenerator
	APIs      *agent.APIManager
	Logger    *slog.Logger
}

// NewSynchronizer returns a Synchronizer using gen with the given backends.
func NewSynchronizer(gen agent.EmbeddingGenerator, apis *agent.APIManager, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{Generator: gen, APIs: apis, Logger: logger}
}

func (s *Synchronizer) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Synchronize generates chunks for every Embeddable item that has none, or
// for every Embeddable item when force is set. Items are processed one at a
// time in collection order. The first failure aborts the call; items already
// processed keep their new chunks.
func (s *Synchronizer) Synchronize(ctx context.Context, cluster *types.DataCluster, force bool) (*types.DataCluster, error) {
	if cluster == nil {
		return nil, errors.New("data cluster is nil")
	}

	for _, col := range cluster.Collections() {
		generated := 0
		for _, item := range col.Items {
			emb, ok := item.(types.Embeddable)
			if !ok {
				continue
			}
			if len(emb.Embeddings()) > 0 && !force {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := s.embedItem(ctx, col.Name, emb); err != nil {
				return nil, err
			}
			generated++
		}

		if err := cluster.SetCollection(col.Name, col.Items); err != nil {
			return nil, err
		}
		if generated > 0 {
			s.logger().Info("[Retrieval] Collection synchronized", "collection", col.Name, "items", len(col.Items), "embedded", generated)
		}
	}

	return cluster, nil
}

func (s *Synchronizer) embedItem(ctx context.Context, collection string, item types.Embeddable) error {
	if fl, ok := item.(contentLoader); ok && !fl.HasContent() && fl.SourcePath() != "" && s.APIs != nil && s.APIs.Loader != nil {
		content, err := s.APIs.Loader.Load(fl.SourcePath())
		if err != nil {
			return fmt.Errorf("load %s item %s from %s: %w", collection, item.ID(), fl.SourcePath(), err)
		}
		fl.SetContent(content)
	}

	content := item.String()
	language := LanguageOf(item)
	s.logger().Debug("[Retrieval] Generating embeddings", "collection", collection, "id", item.ID(), "length", len(content), "language", language)

	chunks, err := s.Generator.GenerateEmbeddings(ctx, s.APIs, content, language)
	if err != nil {
		return fmt.Errorf("generate embeddings for %s item %s: %w", collection, item.ID(), err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("%w: %s item %s", ErrNoEmbeddings, collection, item.ID())
	}

	item.SetEmbeddings(types.EmbeddingList(chunks))
	return nil
}
