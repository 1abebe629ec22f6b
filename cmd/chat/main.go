// Command chat is an interactive terminal client for the turbine assistant
// API. It opens a session and posts each line as a question.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type chatResponse struct {
	Answer                string   `json:"answer"`
	Rejected              bool     `json:"rejected"`
	OffTopic              bool     `json:"off_topic"`
	RAGUsed               bool     `json:"rag_used"`
	Fallback              bool     `json:"fallback"`
	QualityScore          float64  `json:"quality_score"`
	HallucinationDetected bool     `json:"hallucination_detected"`
	Warnings              []string `json:"warnings"`
}

func main() {
	apiURL := flag.String("api", "http://localhost:8080", "API base URL")
	flag.Parse()

	client := &http.Client{Timeout: 90 * time.Second}

	sessionID, err := createSession(client, *apiURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create session: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Turbine assistant. Ask about maintenance, performance, or troubleshooting. Ctrl-D to quit.")
	fmt.Printf("session: %s\n\n", sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}

		resp, err := ask(client, *apiURL, sessionID, question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		fmt.Println()
		fmt.Println(resp.Answer)
		var tags []string
		if resp.RAGUsed {
			tags = append(tags, "grounded")
		}
		if resp.Fallback {
			tags = append(tags, "telemetry fallback")
		}
		if resp.HallucinationDetected {
			tags = append(tags, "unverified figures")
		}
		if len(tags) > 0 {
			fmt.Printf("[%s, quality %.2f]\n", strings.Join(tags, ", "), resp.QualityScore)
		}
		for _, warn := range resp.Warnings {
			fmt.Printf("warning: %s\n", warn)
		}
		fmt.Println()
	}
}

func createSession(client *http.Client, apiURL string) (string, error) {
	resp, err := client.Post(apiURL+"/api/v1/sessions", "application/json", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("API returned %d", resp.StatusCode)
	}
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

func ask(client *http.Client, apiURL, sessionID, question string) (chatResponse, error) {
	body, _ := json.Marshal(chatRequest{SessionID: sessionID, Question: question})
	resp, err := client.Post(apiURL+"/api/v1/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return chatResponse{}, err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return chatResponse{}, err
	}
	// 400 carries the structured rejection; surface its message as the answer.
	if resp.StatusCode != http.StatusOK && !out.Rejected {
		return chatResponse{}, fmt.Errorf("API returned %d", resp.StatusCode)
	}
	return out, nil
}
