package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	delegation "github.com/armatrix/agent-delegation-go"
	"github.com/armatrix/agent-delegation-go/catalog"
	"github.com/armatrix/agent-delegation-go/subagent"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// DelegateRequest is the body of POST /delegate. Timeout is a Go duration
// string such as "30s".
type DelegateRequest struct {
	Target        string            `json:"target"`
	Task          string            `json:"task"`
	Payload       any               `json:"payload"`
	Priority      subagent.Priority `json:"priority"`
	Timeout       string            `json:"timeout"`
	RequiredTools []string          `json:"required_tools"`
	Collaborate   bool              `json:"collaborate"`
	Tags          []string          `json:"tags"`
}

func (r DelegateRequest) toRequest() (subagent.Request, error) {
	req := subagent.Request{
		Target:        r.Target,
		Task:          r.Task,
		Payload:       r.Payload,
		Priority:      r.Priority,
		RequiredTools: r.RequiredTools,
		Collaborate:   r.Collaborate,
		Tags:          r.Tags,
	}
	if r.Timeout != "" {
		d, err := time.ParseDuration(r.Timeout)
		if err != nil || d < 0 {
			return req, fmt.Errorf("%w: invalid timeout %q", delegation.ErrValidation, r.Timeout)
		}
		req.Timeout = d
	}
	return req, nil
}

// BestWorkerRequest is the body of POST /workers/best.
type BestWorkerRequest struct {
	Task          string   `json:"task" binding:"required"`
	RequiredTools []string `json:"required_tools"`
	Tags          []string `json:"tags"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) status(c *gin.Context) {
	st, err := s.engine.GetSystemStatus(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) stats(c *gin.Context) {
	st, err := s.engine.Statistics(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// listWorkers handles GET /workers. Query parameters narrow the result:
// role, status (repeatable), capability (repeatable), tool (repeatable),
// min_success_rate and max_load.
func (s *Server) listWorkers(c *gin.Context) {
	f, err := filterFromQuery(c)
	if err != nil {
		abort(c, err)
		return
	}
	regs, err := s.engine.FindWorkers(c.Request.Context(), f)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(regs), "workers": regs})
}

func filterFromQuery(c *gin.Context) (*subagent.Filter, error) {
	var f subagent.Filter
	if role := c.Query("role"); role != "" {
		f.Role = subagent.ParseRole(role)
	}
	for _, st := range c.QueryArray("status") {
		status := subagent.Status(st)
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", delegation.ErrValidation, st)
		}
		f.Statuses = append(f.Statuses, status)
	}
	f.Capabilities = c.QueryArray("capability")
	f.RequiredTools = c.QueryArray("tool")

	var err error
	if f.MinSuccessRate, err = floatQuery(c, "min_success_rate"); err != nil {
		return nil, err
	}
	if f.MaxLoad, err = floatQuery(c, "max_load"); err != nil {
		return nil, err
	}
	return &f, nil
}

func floatQuery(c *gin.Context, key string) (*float64, error) {
	raw, ok := c.GetQuery(key)
	if !ok {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", delegation.ErrValidation, key)
	}
	return &v, nil
}

// registerWorkers handles POST /workers. The body uses the catalog file
// format: one entry, a list, or a {workers: [...]} document, in JSON or YAML.
func (s *Server) registerWorkers(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		abort(c, fmt.Errorf("%w: read body: %v", delegation.ErrValidation, err))
		return
	}
	name := "request.json"
	if strings.Contains(c.ContentType(), "yaml") {
		name = "request.yaml"
	}
	entries, err := catalog.Parse(name, data)
	if err != nil {
		abort(c, fmt.Errorf("%w: %v", delegation.ErrValidation, err))
		return
	}
	if len(entries) == 0 {
		abort(c, fmt.Errorf("%w: no worker entries in body", delegation.ErrValidation))
		return
	}

	ids := make([]string, 0, len(entries))
	for i := range entries {
		def := entries[i].Definition()
		if err := s.engine.RegisterWorker(c.Request.Context(), def); err != nil {
			abort(c, err)
			return
		}
		ids = append(ids, def.ID)
	}
	c.JSON(http.StatusCreated, gin.H{"registered": ids})
}

func (s *Server) bestWorker(c *gin.Context) {
	var req BestWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, fmt.Errorf("%w: %v", delegation.ErrValidation, err))
		return
	}
	r, err := s.engine.FindBestWorker(c.Request.Context(), req.Task, req.RequiredTools, req.Tags...)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) getWorker(c *gin.Context) {
	r, err := s.engine.GetWorker(c.Request.Context(), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"worker":    r,
		"available": s.engine.IsAvailable(c.Request.Context(), r.ID()),
	})
}

func (s *Server) getCapabilities(c *gin.Context) {
	p, err := s.engine.GetCapabilities(c.Request.Context(), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) unregisterWorker(c *gin.Context) {
	id := c.Param("id")
	removed, err := s.engine.UnregisterWorker(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}
	if !removed {
		abort(c, fmt.Errorf("%w: worker %s", delegation.ErrNotFound, id))
		return
	}
	c.Status(http.StatusNoContent)
}

// operate handles POST /workers/:id/:op. A 409 means the worker exists but
// its status does not allow the operation.
func (s *Server) operate(c *gin.Context) {
	ctx := c.Request.Context()
	id, op := c.Param("id"), c.Param("op")

	var fn func() (bool, error)
	switch op {
	case "recover":
		fn = func() (bool, error) { return s.engine.RecoverWorker(ctx, id) }
	case "drain":
		fn = func() (bool, error) { return s.engine.DrainWorker(ctx, id) }
	case "deactivate":
		fn = func() (bool, error) { return s.engine.DeactivateWorker(ctx, id) }
	case "reactivate":
		fn = func() (bool, error) { return s.engine.ReactivateWorker(ctx, id) }
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown operation " + op})
		return
	}

	changed, err := fn()
	if err != nil {
		abort(c, err)
		return
	}
	if !changed {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("cannot %s worker %s in its current status", op, id)})
		return
	}
	r, err := s.engine.GetWorker(ctx, id)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// delegate handles POST /delegate. Expected delegation failures are
// reported in the response body with success=false and status 200.
func (s *Server) delegate(c *gin.Context) {
	var body DelegateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abort(c, fmt.Errorf("%w: %v", delegation.ErrValidation, err))
		return
	}
	req, err := body.toRequest()
	if err != nil {
		abort(c, err)
		return
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		// The task outlives the request.
		t := s.engine.Spawn(context.WithoutCancel(c.Request.Context()), req)
		select {
		case <-t.Done():
			// Refused before dispatch, or already finished.
			resp, _ := t.Wait(c.Request.Context())
			c.JSON(http.StatusOK, resp)
		default:
			c.JSON(http.StatusAccepted, gin.H{"task_id": t.ID()})
		}
		return
	}
	c.JSON(http.StatusOK, s.engine.Delegate(c.Request.Context(), req))
}

func (s *Server) listTasks(c *gin.Context) {
	tasks := s.engine.RunningTasks()
	c.JSON(http.StatusOK, gin.H{"count": len(tasks), "tasks": tasks})
}

func (s *Server) getTask(c *gin.Context) {
	m, err := s.engine.GetTaskStatus(c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) cancelTask(c *gin.Context) {
	id := c.Param("id")
	if !s.engine.CancelTask(id) {
		abort(c, fmt.Errorf("%w: task %s", delegation.ErrNotFound, id))
		return
	}
	c.Status(http.StatusNoContent)
}
