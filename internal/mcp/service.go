package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sanonone/kektorflow/pkg/agent"
	"github.com/sanonone/kektorflow/pkg/cluster"
	"github.com/sanonone/kektorflow/pkg/core/types"
	"github.com/sanonone/kektorflow/pkg/tasks"
)

// Service implements the tool handlers.
type Service struct {
	apis      *agent.APIManager
	store     *cluster.Store
	retrieval *tasks.RetrievalTask
	speech    *tasks.SpeechTask
	logger    *slog.Logger
}

func NewService(apis *agent.APIManager, store *cluster.Store, rt *tasks.RetrievalTask, st *tasks.SpeechTask, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{apis: apis, store: store, retrieval: rt, speech: st, logger: logger}
}

// RetrieveContext runs the retrieval task against the stored cluster.
func (s *Service) RetrieveContext(ctx context.Context, req *mcp.CallToolRequest, args tasks.RetrievalParams) (*mcp.CallToolResult, RetrieveContextResult, error) {
	var (
		res    tasks.RetrievalResult
		runErr error
	)
	if err := s.store.Update(func(c *types.DataCluster) error {
		res, runErr = s.retrieval.Run(ctx, s.apis, c, args)
		return nil
	}); err != nil {
		return nil, RetrieveContextResult{}, fmt.Errorf("persist cluster: %w", err)
	}
	if runErr != nil {
		return nil, RetrieveContextResult{}, fmt.Errorf("retrieval failed: %w", runErr)
	}

	out := RetrieveContextResult{TaskID: res.TaskID, Chunks: make([]ContextChunk, 0, len(res.Matches))}
	for _, m := range res.Matches {
		out.Chunks = append(out.Chunks, ContextChunk{
			Text:       m.Chunk.TextContent,
			Index:      m.Chunk.Index,
			Similarity: m.Similarity,
		})
	}
	s.logger.Info("[MCP] retrieve_context", "task_id", res.TaskID, "chunks", len(out.Chunks))
	return nil, out, nil
}

// TextToSpeech runs the speech task.
func (s *Service) TextToSpeech(ctx context.Context, req *mcp.CallToolRequest, args tasks.SpeechParams) (*mcp.CallToolResult, SpeechResult, error) {
	res, err := s.speech.Run(ctx, s.apis, args)
	if err != nil {
		return nil, SpeechResult{}, fmt.Errorf("speech failed: %w", err)
	}
	out := SpeechResult{TaskID: res.TaskID, Files: []string{}}
	if last, ok := res.Last(); ok {
		for _, f := range last.References.Files {
			out.Files = append(out.Files, f.SourcePath())
		}
	}
	return nil, out, nil
}

// AddReference appends a message or file to the stored cluster.
func (s *Service) AddReference(ctx context.Context, req *mcp.CallToolRequest, args AddReferenceArgs) (*mcp.CallToolResult, AddReferenceResult, error) {
	var out AddReferenceResult
	err := s.store.Update(func(c *types.DataCluster) error {
		switch args.Kind {
		case "message":
			if args.Content == "" {
				return fmt.Errorf("a message needs content")
			}
			role := args.Role
			if role == "" {
				role = "user"
			}
			m := &types.MessageReference{RefID: types.NewID(), Role: role, Content: args.Content}
			c.Messages = append(c.Messages, m)
			out.ID = m.RefID
		case "file":
			if args.Content == "" && args.Path == "" {
				return fmt.Errorf("a file needs content or a path")
			}
			f := &types.FileReference{RefID: types.NewID(), Filename: args.Filename, Path: args.Path, Content: args.Content}
			c.Files = append(c.Files, f)
			out.ID = f.RefID
		default:
			return fmt.Errorf("unknown kind %q: use message or file", args.Kind)
		}
		out.References = c.Stats().References
		return nil
	})
	return nil, out, err
}
