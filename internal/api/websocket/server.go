package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/publisher"
	"github.com/fortuna/augur/internal/sport"
	"github.com/fortuna/augur/internal/store"
)

// Message is the envelope written to subscribers.
type Message struct {
	Type      string      `json:"type"`
	Sport     sport.Sport `json:"sport"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Server pushes predictions and settlements to websocket subscribers.
type Server struct {
	hub      *Hub
	server   *http.Server
	upgrader websocket.Upgrader
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a websocket server and starts its hub. Origins lists
// the allowed browser origins; empty allows all.
func NewServer(origins []string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("websocket")

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		hub:    NewHub(logger),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(origins),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(ctx)
	}()
	return s
}

// Handler returns the websocket routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/predictions", s.handlePredictions)
	mux.HandleFunc("/ws/health", s.handleHealth)
	return mux
}

// Start listens on port until Shutdown.
func (s *Server) Start(port string) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("websocket server listening", zap.String("port", port))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	client := newClient(s.hub, conn)
	s.hub.Register(s.ctx, client)

	go client.writePump()
	go client.readPump(s.ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "healthy",
		"clients":  s.hub.ClientCount(),
		"messages": s.hub.Messages(),
	})
}

// PublishPrediction broadcasts a prediction to every subscriber.
func (s *Server) PublishPrediction(_ context.Context, sp sport.Sport, p store.Prediction) error {
	return s.broadcast("prediction", sp, p)
}

// PublishSettlement broadcasts a settled result to every subscriber.
func (s *Server) PublishSettlement(_ context.Context, sp sport.Sport, st publisher.Settlement) error {
	return s.broadcast("settlement", sp, st)
}

func (s *Server) broadcast(kind string, sp sport.Sport, payload interface{}) error {
	data, err := json.Marshal(Message{Type: kind, Sport: sp, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	s.hub.Broadcast(data)
	return nil
}

// Shutdown stops the listener and disconnects every client.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	s.cancel()
	s.wg.Wait()
	return err
}

func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}
