package metrics

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"
)

// HealthStatus is the JSON body served by the health endpoints.
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

// component is one subsystem's last reported state.
type component struct {
	healthy bool
	message string
	updated time.Time
}

// componentSet tracks subsystem states for the /health and /ready
// endpoints. The heartbeat is the writer.
type componentSet struct {
	mu         sync.RWMutex
	components map[string]component
	started    time.Time
	version    string
}

var registry = &componentSet{
	components: make(map[string]component),
	started:    time.Now(),
}

// criticalComponents must be registered and healthy before the
// orchestrator reports ready.
var criticalComponents = []string{"vault", "audit"}

// SetVersion sets the version string reported by the health endpoints.
func SetVersion(version string) {
	registry.mu.Lock()
	registry.version = version
	registry.mu.Unlock()
}

// RegisterComponent records a component's health state, creating the
// entry on first call.
func RegisterComponent(name string, healthy bool, message string) {
	registry.mu.Lock()
	registry.components[name] = component{
		healthy: healthy,
		message: message,
		updated: time.Now(),
	}
	registry.mu.Unlock()
}

// UpdateComponent refreshes a component's health state.
func UpdateComponent(name string, healthy bool, message string) {
	RegisterComponent(name, healthy, message)
}

// report starts a response with the shared envelope fields. Callers
// hold at least a read lock.
func (s *componentSet) report() HealthStatus {
	return HealthStatus{
		Timestamp: time.Now(),
		Version:   s.version,
		Uptime:    time.Since(s.started).String(),
	}
}

// GetHealth reports overall health: unhealthy as soon as any
// registered component is.
func GetHealth() HealthStatus {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	out := registry.report()
	out.Status = "healthy"
	out.Components = make(map[string]string, len(registry.components))
	for name, comp := range registry.components {
		if comp.healthy {
			out.Components[name] = "healthy"
			continue
		}
		out.Status = "unhealthy"
		out.Components[name] = "unhealthy: " + comp.message
	}
	return out
}

// GetReadiness reports readiness: every critical component must be
// registered and healthy.
func GetReadiness() HealthStatus {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	out := registry.report()
	out.Status = "ready"
	out.Components = make(map[string]string, len(criticalComponents))

	var blockers []string
	for _, name := range criticalComponents {
		comp, ok := registry.components[name]
		switch {
		case !ok:
			out.Components[name] = "not registered"
			blockers = append(blockers, name+" (not registered)")
		case !comp.healthy:
			out.Components[name] = "not ready: " + comp.message
			blockers = append(blockers, name)
		default:
			out.Components[name] = "ready"
		}
	}
	if len(blockers) > 0 {
		out.Status = "not_ready"
		out.Message = "waiting for " + strings.Join(blockers, ", ")
	}
	return out
}

func serveJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// HealthHandler serves /health: 200 while every component is healthy,
// 503 otherwise.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := GetHealth()
		code := http.StatusOK
		if health.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		serveJSON(w, code, health)
	}
}

// ReadyHandler serves /ready: 200 once the critical components are up.
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := GetReadiness()
		code := http.StatusOK
		if readiness.Status != "ready" {
			code = http.StatusServiceUnavailable
		}
		serveJSON(w, code, readiness)
	}
}

// LivenessHandler serves /live; it answers 200 for as long as the
// process runs.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		registry.mu.RLock()
		uptime := time.Since(registry.started).String()
		registry.mu.RUnlock()

		serveJSON(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": uptime,
		})
	}
}
