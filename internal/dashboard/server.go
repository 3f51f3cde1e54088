// Package dashboard serves a read-only view of the agent: an HTML status
// page, the raw state as JSON, Prometheus metrics, and a live event
// stream over websocket.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/moltagent/moltagent/internal/metrics"
	"github.com/moltagent/moltagent/pkg/state"
)

// ActionSource supplies archived actions beyond the in-state cap.
type ActionSource interface {
	Recent(limit int) ([]state.ActionRecord, error)
}

// Server is the dashboard HTTP server.
type Server struct {
	store   *state.Store
	archive ActionSource
	metrics *metrics.Metrics
	hub     *Hub

	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// New creates a dashboard server. archive may be nil.
func New(addr string, store *state.Store, archive ActionSource, m *metrics.Metrics) *Server {
	s := &Server{
		store:   store,
		archive: archive,
		metrics: m,
		hub:     NewHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/actions", s.handleActions)
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/ws", s.handleWS)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Hub returns the event hub so the loop can publish into it.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("Dashboard listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard server: %w", err)
	}
	return nil
}

// Shutdown stops the server and disconnects websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()
	return s.httpServer.Shutdown(ctx)
}

// stateView is the JSON shape served at /state. The platform API key is
// never exposed.
type stateView struct {
	AgentName        string                      `json:"agentName"`
	AgentDescription string                      `json:"agentDescription,omitempty"`
	HasAPIKey        bool                        `json:"hasApiKey"`
	LastStatus       string                      `json:"lastStatus,omitempty"`
	LastUsedProvider string                      `json:"lastUsedProvider,omitempty"`
	LastUsedModel    map[string]string           `json:"lastUsedModel,omitempty"`
	ProviderKeyIndex map[string]int              `json:"providerKeyIndex"`
	LastPostAt       *time.Time                  `json:"lastPostAt,omitempty"`
	LastCommentAt    *time.Time                  `json:"lastCommentAt,omitempty"`
	LastFollowAt     *time.Time                  `json:"lastFollowAt,omitempty"`
	PersonaSummary   string                      `json:"personaSummary,omitempty"`
	FollowingNames   []string                    `json:"followingNames"`
	RecentActions    []state.ActionRecord        `json:"recentActions"`
	TopicStats       map[string]state.TopicStat  `json:"topicStats"`
	Verification     []state.VerificationAttempt `json:"verificationHistory"`
}

func newStateView(st *state.State) stateView {
	return stateView{
		AgentName:        st.AgentName,
		AgentDescription: st.AgentDescription,
		HasAPIKey:        st.MoltbookAPIKey != "",
		LastStatus:       st.LastStatus,
		LastUsedProvider: st.LastUsedProvider,
		LastUsedModel:    st.LastUsedModel,
		ProviderKeyIndex: st.ProviderKeyIndex,
		LastPostAt:       st.LastPostAt,
		LastCommentAt:    st.LastCommentAt,
		LastFollowAt:     st.LastFollowAt,
		PersonaSummary:   st.PersonaSummary,
		FollowingNames:   st.FollowingNames,
		RecentActions:    st.RecentActions,
		TopicStats:       st.TopicStats,
		Verification:     st.VerificationHistory,
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Load()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(newStateView(st)); err != nil {
		log.Error().Err(err).Msg("Failed to encode state view")
	}
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		http.Error(w, "archive disabled", http.StatusNotFound)
		return
	}
	records, err := s.archive.Recent(100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		log.Error().Err(err).Msg("Failed to encode archived actions")
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	s.hub.add(conn)
	log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("Dashboard client connected")

	// Reader goroutine only detects disconnects; clients do not send data.
	go func() {
		defer s.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

type topTopic struct {
	Topic string
	Count int
}

type indexData struct {
	View      stateView
	TopTopics []topTopic
	Now       string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	st, err := s.store.Load()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	topics := make([]topTopic, 0, len(st.TopicStats))
	for topic, stat := range st.TopicStats {
		topics = append(topics, topTopic{Topic: topic, Count: stat.Count})
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Count != topics[j].Count {
			return topics[i].Count > topics[j].Count
		}
		return topics[i].Topic < topics[j].Topic
	})
	if len(topics) > 10 {
		topics = topics[:10]
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, indexData{
		View:      newStateView(st),
		TopTopics: topics,
		Now:       time.Now().Format(time.RFC1123),
	}); err != nil {
		log.Error().Err(err).Msg("Failed to render dashboard")
	}
}

var indexTemplate = template.Must(template.New("index").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>{{.View.AgentName}} dashboard</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; background: #11131a; color: #e6e6e6; }
h1 { font-size: 1.4rem; }
h2 { font-size: 1.05rem; margin-top: 2rem; color: #9ecbff; }
table { border-collapse: collapse; }
td, th { padding: 4px 12px 4px 0; text-align: left; vertical-align: top; }
.kind { color: #9ecbff; }
.muted { color: #8a8f98; }
#events li { list-style: none; padding: 2px 0; }
</style>
</head>
<body>
<h1>{{.View.AgentName}} <span class="muted">on Moltbook</span></h1>
<table>
<tr><td>Registered</td><td>{{if .View.HasAPIKey}}yes{{else}}no{{end}}</td></tr>
<tr><td>Claim status</td><td>{{if .View.LastStatus}}{{.View.LastStatus}}{{else}}-{{end}}</td></tr>
<tr><td>Last provider</td><td>{{if .View.LastUsedProvider}}{{.View.LastUsedProvider}}{{else}}-{{end}}</td></tr>
<tr><td>Following</td><td>{{len .View.FollowingNames}} agents</td></tr>
</table>

<h2>Top topics</h2>
<table>
{{range .TopTopics}}<tr><td>{{.Topic}}</td><td>{{.Count}}</td></tr>
{{else}}<tr><td class="muted">none yet</td></tr>
{{end}}
</table>

<h2>Recent actions</h2>
<table>
{{range .View.RecentActions}}<tr><td class="kind">{{.Kind}}</td><td>{{.Summary}}</td><td class="muted">{{.At.Format "15:04:05"}}</td></tr>
{{else}}<tr><td class="muted">none yet</td></tr>
{{end}}
</table>

<h2>Live events</h2>
<ul id="events"></ul>

<p class="muted">Rendered {{.Now}} · <a href="/state" style="color:#9ecbff">state</a> · <a href="/metrics" style="color:#9ecbff">metrics</a></p>
<script>
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws");
  ws.onmessage = function (msg) {
    var ev = JSON.parse(msg.data);
    var li = document.createElement("li");
    li.textContent = new Date(ev.timestamp).toLocaleTimeString() + " [" + ev.kind + "] " + ev.message;
    var list = document.getElementById("events");
    list.insertBefore(li, list.firstChild);
    while (list.children.length > 20) list.removeChild(list.lastChild);
  };
})();
</script>
</body>
</html>
`))
