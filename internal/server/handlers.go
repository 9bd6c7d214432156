package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/sanonone/kektorflow/pkg/core/types"
	"github.com/sanonone/kektorflow/pkg/engine"
	"github.com/sanonone/kektorflow/pkg/tasks"
)

const maxBodyBytes = 32 << 20

func (s *Server) registerHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/tasks", s.handleListTasks)
	mux.HandleFunc("POST /v1/tasks/retrieval", s.handleRetrieval)
	mux.HandleFunc("POST /v1/tasks/speech", s.handleSpeech)
	mux.HandleFunc("GET /v1/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /v1/cluster", s.handleGetCluster)
	mux.HandleFunc("PUT /v1/cluster", s.handlePutCluster)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeHTTPResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	s.writeHTTPResponse(w, http.StatusOK, TasksResponse{Tasks: []tasks.Descriptor{
		s.deps.Retrieval.Descriptor(),
		s.deps.Speech.Descriptor(),
	}})
}

func (s *Server) handleRetrieval(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	params, err := tasks.ParseRetrievalParams(raw)
	if err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.dispatch(w, r, tasks.RetrievalTaskName, func(ctx context.Context) (*RunResponse, error) {
		return s.runRetrieval(ctx, params)
	})
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	params, err := tasks.ParseSpeechParams(raw)
	if err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.dispatch(w, r, tasks.SpeechTaskName, func(ctx context.Context) (*RunResponse, error) {
		res, err := s.deps.Speech.Run(ctx, s.deps.APIs, params)
		return summarize(tasks.SpeechTaskName, res, err), err
	})
}

// dispatch runs fn inline, or in the background when ?async=true.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, task string, fn func(context.Context) (*RunResponse, error)) {
	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if !async {
		resp, err := fn(r.Context())
		if err != nil {
			s.logger.Warn("[Server] task run failed", "task", task, "error", err)
			s.writeHTTPResponse(w, statusFor(err), resp)
			return
		}
		s.writeHTTPResponse(w, http.StatusOK, resp)
		return
	}

	run := s.runs.NewRun(task)
	go func() {
		defer s.runs.finish(run.ID())
		run.SetStatus(RunStatusRunning)
		resp, err := fn(s.baseCtx)
		if err != nil {
			s.logger.Warn("[Server] async task run failed", "task", task, "run", run.ID(), "error", err)
		}
		run.Complete(resp, err)
	}()
	w.Header().Set("Location", "/v1/runs/"+run.ID())
	s.writeHTTPResponse(w, http.StatusAccepted, run.Info())
}

// runRetrieval runs the task with exclusive access to the stored cluster.
// Synchronization progress is saved even when the run fails.
func (s *Server) runRetrieval(ctx context.Context, params tasks.RetrievalParams) (*RunResponse, error) {
	var (
		out    *RunResponse
		runErr error
	)
	err := s.deps.Store.Update(func(c *types.DataCluster) error {
		res, err := s.deps.Retrieval.Run(ctx, s.deps.APIs, c, params)
		runErr = err
		out = summarize(tasks.RetrievalTaskName, res.Result, err)
		out.Chunks = res.Chunks
		if res.Cluster != nil {
			st := res.Cluster.Stats()
			out.Cluster = &st
		}
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("persist cluster: %w", err)
	}
	return out, runErr
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runs.Get(r.PathValue("id"))
	if !ok {
		s.writeHTTPError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, run.Info())
}

func (s *Server) handleGetCluster(w http.ResponseWriter, r *http.Request) {
	full, _ := strconv.ParseBool(r.URL.Query().Get("full"))

	// Encode under the lock; runs mutate the cluster in place.
	var (
		body []byte
		err  error
	)
	s.deps.Store.View(func(c *types.DataCluster) {
		resp := ClusterResponse{Stats: c.Stats()}
		if full {
			resp.Cluster = c
		}
		body, err = json.Marshal(resp)
	})
	if err != nil {
		s.writeHTTPError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (s *Server) handlePutCluster(w http.ResponseWriter, r *http.Request) {
	var c types.DataCluster
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&c); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid cluster: "+err.Error())
		return
	}
	c.AssignIDs()
	if err := s.deps.Store.Replace(&c); err != nil {
		s.writeHTTPError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, ClusterResponse{Stats: s.deps.Store.Stats()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tasks.ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrMaxSteps):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeHTTPResponse(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeHTTPError(w http.ResponseWriter, statusCode int, message string) {
	s.writeHTTPResponse(w, statusCode, map[string]string{"error": message})
}
