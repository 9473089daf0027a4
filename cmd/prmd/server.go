package main

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"go.uber.org/zap"

	prm "waypoint-prm"
)

// Bounds is a rectangular workspace.
type Bounds struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

func (b Bounds) bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinX, b.MinY}, Max: orb.Point{b.MaxX, b.MaxY}}
}

// PlanRequest is the body of POST /plan.
type PlanRequest struct {
	Builder  string                 `json:"builder"`
	Config   map[string]interface{} `json:"config,omitempty"`
	Starts   [][]float64            `json:"starts"`
	Interims [][]float64            `json:"interims,omitempty"`
	Goals    [][]float64            `json:"goals"`
	// Obstacles is a GeoJSON feature collection replacing the server's scene.
	Obstacles json.RawMessage `json:"obstacles,omitempty"`
	Bounds    *Bounds         `json:"bounds,omitempty"`
}

// PlanResponse is the reply of POST /plan.
type PlanResponse struct {
	Success bool        `json:"success"`
	Path    []string    `json:"path"`
	Configs [][]float64 `json:"configs"`
	Retries int         `json:"retries"`
	Replans int         `json:"replans"`
	Nodes   int         `json:"numNodes"`
	Message string      `json:"message,omitempty"`
}

type server struct {
	logger *zap.Logger
	// scene is used when a request brings no obstacles; may be nil.
	scene *prm.PlanarScene

	mu   sync.RWMutex
	last *prm.Result
}

func newServer(scene *prm.PlanarScene, logger *zap.Logger) *server {
	return &server{scene: scene, logger: logger}
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/plan", s.planHandler)
	mux.HandleFunc("/roadmap", s.roadmapHandler)
	mux.HandleFunc("/roadmap/lines", s.linesHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return cors.AllowAll().Handler(mux)
}

// POST /plan - plan a path through the requested waypoints
func (s *server) planHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("invalid request body", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	planner, err := s.plannerFor(&req)
	if err != nil {
		s.logger.Warn("rejected plan request", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.logger.Info("plan request received",
		zap.String("builder", planner.Builder().Name()),
		zap.Int("starts", len(req.Starts)),
		zap.Int("interims", len(req.Interims)),
		zap.Int("goals", len(req.Goals)))

	res, err := planner.Plan(req.Starts, req.Interims, req.Goals)
	if err != nil {
		var invalid *prm.InvalidInputError
		if errors.As(err, &invalid) {
			writeJSON(w, http.StatusUnprocessableEntity, PlanResponse{Message: err.Error()})
			return
		}
		s.logger.Error("planning error", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	s.last = res
	s.mu.Unlock()

	resp := PlanResponse{
		Success: res.Found(),
		Path:    res.Labels(),
		Configs: res.Configs(),
		Retries: res.Retries,
		Replans: res.Replans,
		Nodes:   res.Roadmap.Len(),
	}
	if res.Err != nil {
		resp.Message = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// plannerFor resolves the scene, builder and options of a request.
func (s *server) plannerFor(req *PlanRequest) (*prm.Planner, error) {
	scene, err := s.sceneFor(req)
	if err != nil {
		return nil, err
	}
	name := req.Builder
	if name == "" {
		name = prm.UniformRadiusName
	}
	builder, err := prm.BuilderByName(name)
	if err != nil {
		return nil, err
	}
	cfg, err := prm.DecodeConfig(req.Config)
	if err != nil {
		return nil, err
	}
	return prm.NewPlanner(scene, builder, cfg, prm.WithLogger(s.logger))
}

func (s *server) sceneFor(req *PlanRequest) (*prm.PlanarScene, error) {
	if len(req.Obstacles) == 0 {
		switch {
		case req.Bounds != nil:
			var obstacles []orb.Polygon
			if s.scene != nil {
				obstacles = s.scene.Obstacles()
			}
			return prm.NewPlanarScene(req.Bounds.bound(), obstacles), nil
		case s.scene != nil:
			return s.scene, nil
		default:
			return nil, errors.New("no scene loaded: send obstacles or bounds")
		}
	}

	obstacles, err := prm.ParseObstacles(req.Obstacles)
	if err != nil {
		return nil, err
	}
	switch {
	case req.Bounds != nil:
		return prm.NewPlanarScene(req.Bounds.bound(), obstacles), nil
	case s.scene != nil:
		limits := s.scene.Limits()
		return prm.NewPlanarScene(orb.Bound{
			Min: orb.Point{limits[0][0], limits[1][0]},
			Max: orb.Point{limits[0][1], limits[1][1]},
		}, obstacles), nil
	default:
		return nil, errors.New("obstacles sent without bounds")
	}
}

// GET /roadmap - roadmap snapshot of the last plan
func (s *server) roadmapHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	res := s.lastResult()
	if res == nil {
		http.Error(w, "No roadmap yet. Call /plan first", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, res.Snapshot())
}

// GET /roadmap/lines - roadmap edges of the last plan for visualization
func (s *server) linesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	res := s.lastResult()
	if res == nil {
		http.Error(w, "No roadmap yet. Call /plan first", http.StatusNotFound)
		return
	}
	lines := res.Roadmap.Lines()
	s.logger.Debug("returning roadmap lines", zap.Int("lines", len(lines)))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"lines":    lines,
		"numNodes": res.Roadmap.Len(),
		"numEdges": len(lines),
	})
}

// GET /health - health check endpoint
func (s *server) healthHandler(w http.ResponseWriter, r *http.Request) {
	numObstacles := 0
	if s.scene != nil {
		numObstacles = len(s.scene.Obstacles())
	}
	res := s.lastResult()
	numNodes := 0
	if res != nil {
		numNodes = res.Roadmap.Len()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ready",
		"hasScene":     s.scene != nil,
		"numObstacles": numObstacles,
		"numNodes":     numNodes,
	})
}

func (s *server) lastResult() *prm.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck
	json.NewEncoder(w).Encode(v)
}
