package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Checker is one readiness dependency.
type Checker interface {
	Ping(ctx context.Context) error
}

// Dependency names a Checker. Critical dependencies turn the probe to
// "error" (503); the rest only degrade it.
type Dependency struct {
	Name     string
	Checker  Checker
	Critical bool
}

type HealthHandler struct {
	deps    []Dependency
	env     string
	version string
}

func NewHealthHandler(deps []Dependency, env, version string) *HealthHandler {
	return &HealthHandler{
		deps:    deps,
		env:     env,
		version: version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	type outcome struct {
		dep Dependency
		err error
	}
	results := make([]outcome, len(h.deps))

	var wg sync.WaitGroup
	for i, dep := range h.deps {
		wg.Add(1)
		go func(i int, dep Dependency) {
			defer wg.Done()
			depCtx, depCancel := context.WithTimeout(ctx, time.Second)
			defer depCancel()
			results[i] = outcome{dep: dep, err: dep.Checker.Ping(depCtx)}
		}(i, dep)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool { return results[i].dep.Name < results[j].dep.Name })

	deps := make(map[string]string, len(results))
	status := "ok"
	for _, res := range results {
		if res.err == nil {
			deps[res.dep.Name] = "ok"
			continue
		}
		deps[res.dep.Name] = "down"
		switch {
		case res.dep.Critical:
			status = "error"
		case status == "ok":
			status = "degraded"
		}
	}

	resp := ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, resp)
}
