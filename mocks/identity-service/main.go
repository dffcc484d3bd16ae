package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort      = "8081"
	defaultLatencyMs = "20"
)

type VerificationResponse struct {
	UserID     string    `json:"user_id"`
	Verified   bool      `json:"verified"`
	VerifiedAt time.Time `json:"verified_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

var latencyMs = getEnvInt("LATENCY_MS", defaultLatencyMs)

func main() {
	port := getEnv("PORT", defaultPort)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /users/{userID}/verification", handleVerification)

	log.Printf("mock identity service starting on port %s (latency %dms)", port, latencyMs)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Fatal(err)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "identity-service",
	})
}

// Magic user id prefixes let e2e tests steer the mock:
//
//	unverified-  verified=false
//	stale-       verified a day ago
//	ghost-       404
//	flaky-       503
//
// Every other user is verified as of now.
func handleVerification(w http.ResponseWriter, r *http.Request) {
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)

	userID := r.PathValue("userID")
	log.Printf("verification lookup: %s", userID)

	now := time.Now().UTC()
	resp := VerificationResponse{UserID: userID, Verified: true, VerifiedAt: now.Add(-time.Minute)}
	switch {
	case strings.HasPrefix(userID, "ghost-"):
		sendError(w, "user not found", http.StatusNotFound)
		return
	case strings.HasPrefix(userID, "flaky-"):
		sendError(w, "verification backend unavailable", http.StatusServiceUnavailable)
		return
	case strings.HasPrefix(userID, "unverified-"):
		resp.Verified = false
		resp.VerifiedAt = time.Time{}
	case strings.HasPrefix(userID, "stale-"):
		resp.VerifiedAt = now.Add(-24 * time.Hour)
	}
	writeJSON(w, http.StatusOK, resp)
}

func sendError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key, fallback string) int {
	n, err := strconv.Atoi(getEnv(key, fallback))
	if err != nil {
		return 0
	}
	return n
}
