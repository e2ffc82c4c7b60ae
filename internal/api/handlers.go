package api

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleJobs reports every currently in-flight job (a request being
// handled, a build running, a post-build reload), for operators to
// confirm the server isn't wedged.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": s.jobs.Len(),
		"jobs":  s.jobs.Snapshot(),
	})
}

// handleQueue reports the build queue's current slot occupancy.
func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queue.Snapshot())
}

// handlePlan reports the build plan's unit count and, per unit, its
// key and immediate dependencies.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	if s.graph == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"units": 0, "entries": []interface{}{}})
		return
	}
	units := s.graph.Units()
	entries := make([]map[string]interface{}, 0, len(units))
	for _, u := range units {
		entries = append(entries, map[string]interface{}{
			"key":     u.Key,
			"primary": u.Primary,
			"deps":    s.graph.Deps(u.Key),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"units":   len(units),
		"entries": entries,
	})
}

// handleVFS reports every currently open overlay path and its text
// length, without dumping full buffer contents over the wire.
func (s *Server) handleVFS(w http.ResponseWriter, r *http.Request) {
	files := s.vfs.GetCachedFiles()
	lengths := make(map[string]int, len(files))
	for path, text := range files {
		lengths[path] = len(text)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"open_files": len(files),
		"lengths":    lengths,
	})
}
