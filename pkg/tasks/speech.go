package tasks

import (
	"context"
	"log/slog"

	"github.com/sanonone/kektorflow/pkg/agent"
	"github.com/sanonone/kektorflow/pkg/engine"
)

// Node and task name of the speech task.
const (
	SpeechTaskName   = "text_to_speech"
	NodeTextToSpeech = "text_to_speech"
)

// SpeechRoutes ends on success and retries on failure.
func SpeechRoutes() engine.RoutingTable {
	return engine.RoutingTable{
		NodeTextToSpeech: {
			engine.ExitSuccess: {},
			engine.ExitFailure: {Next: NodeTextToSpeech, Retry: true},
		},
	}
}

// SpeechContext is the per-run state of the speech task.
type SpeechContext struct {
	APIs   *agent.APIManager
	Params SpeechParams
}

// SpeechTask converts text to an audio file.
type SpeechTask struct {
	generator agent.SpeechGenerator
	logger    *slog.Logger
	engine    *engine.Engine[*SpeechContext]
}

func NewSpeechTask(gen agent.SpeechGenerator, logger *slog.Logger, opts ...engine.Option) (*SpeechTask, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &SpeechTask{generator: gen, logger: logger}

	nodes := []engine.Node[*SpeechContext]{guard(logger, NodeTextToSpeech, t.TextToSpeech)}
	eng, err := engine.NewEngine(SpeechTaskName, nodes, SpeechRoutes(), append([]engine.Option{engine.WithLogger(logger)}, opts...)...)
	if err != nil {
		return nil, err
	}
	t.engine = eng
	return t, nil
}

// Descriptor describes the speech task.
func (t *SpeechTask) Descriptor() Descriptor {
	return Descriptor{
		Name:         SpeechTaskName,
		Description:  "Convert text to speech and return a file reference to the audio.",
		StartNode:    NodeTextToSpeech,
		Routes:       SpeechRoutes(),
		RequiredAPIs: []agent.API{agent.APITextToSpeech},
		InputSchema:  SpeechSchema(),
	}
}

// Run executes the task.
func (t *SpeechTask) Run(ctx context.Context, apis *agent.APIManager, params SpeechParams) (engine.Result, error) {
	if err := params.Validate(); err != nil {
		return engine.Result{}, err
	}
	return t.engine.Run(ctx, NodeTextToSpeech, &SpeechContext{APIs: apis, Params: params})
}

// TextToSpeech is the only node of the task.
func (t *SpeechTask) TextToSpeech(ctx context.Context, h engine.History, c *SpeechContext) engine.NodeResponse {
	if err := c.APIs.Require(agent.APITextToSpeech); err != nil {
		return failure(t.logger, NodeTextToSpeech, "Speech generation failed", err)
	}
	refs, err := t.generator.GenerateSpeech(ctx, c.APIs, c.Params.Text, c.Params.Voice, c.Params.Speed)
	if err != nil {
		return failure(t.logger, NodeTextToSpeech, "Speech generation failed", err)
	}
	return engine.Success(refs)
}
