package stubnotary

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"otme/go-client/internal/notary"
	"otme/go-client/pkg/models"
)

// Response is what the HTTP stub writes for one request.
type Response struct {
	Status int
	Body   []byte
	Delay  time.Duration
}

type Responder func(req models.OperationRequest) Response

// Server is an http.Handler speaking the notary wire protocol.
type Server struct {
	mu       sync.Mutex
	respond  Responder
	calls    map[string]int
	requests []models.OperationRequest
}

func NewServer(respond Responder) *Server {
	if respond == nil {
		respond = func(req models.OperationRequest) Response {
			return Response{Status: http.StatusOK, Body: Reply(req, AllOK)}
		}
	}
	return &Server{respond: respond, calls: make(map[string]int)}
}

// ReplyWith answers every request with the given tiers.
func ReplyWith(tiers Tiers) Responder {
	return func(req models.OperationRequest) Response {
		return Response{Status: http.StatusOK, Body: Reply(req, tiers)}
	}
}

// Reject answers with a notary rejection body.
func Reject(status int, code string, expectedRequestNumber int64) Response {
	body, err := json.Marshal(notary.WireRejection{Error: code, ExpectedRequestNumber: expectedRequestNumber})
	if err != nil {
		panic(err)
	}
	return Response{Status: status, Body: body}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != notary.RequestPath {
		http.NotFound(w, r)
		return
	}
	var wire notary.WireRequest
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	req := wire.OperationRequest()

	s.mu.Lock()
	s.calls[req.Operation()]++
	s.requests = append(s.requests, req)
	respond := s.respond
	s.mu.Unlock()

	resp := respond(req)
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

func (s *Server) Calls(operation string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[operation]
}

func (s *Server) Requests() []models.OperationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OperationRequest(nil), s.requests...)
}
