// leadctl is a small operator CLI against a running leadscout instance:
//
//	leadctl submit -lead <id> [-kind research|score]
//	leadctl watch -job <id> [-from N]
//	leadctl stop -job <id>
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"leadscout/internal/stream"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	baseURL := os.Getenv("LEADSCOUT_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	apiKey := os.Getenv("LEADSCOUT_API_KEY")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "submit":
		err = submit(ctx, baseURL, apiKey, os.Args[2:])
	case "watch":
		err = watch(ctx, baseURL, apiKey, os.Args[2:])
	case "stop":
		err = stop(ctx, baseURL, apiKey, os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: leadctl submit|watch|stop [flags]")
	os.Exit(2)
}

func submit(ctx context.Context, baseURL, apiKey string, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	leadID := fs.String("lead", "", "lead id (required)")
	kind := fs.String("kind", "research", "job kind: research|score")
	timeoutMs := fs.Int("timeout-ms", 0, "job timeout in milliseconds (0 = server default)")
	_ = fs.Parse(args)
	if *leadID == "" {
		return fmt.Errorf("-lead is required")
	}

	jobID := uuid.NewString()
	body, _ := json.Marshal(map[string]any{
		"job_id":     jobID,
		"lead_id":    *leadID,
		"kind":       *kind,
		"timeout_ms": *timeoutMs,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/jobs", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("submit returned %s", resp.Status)
	}
	fmt.Println(jobID)
	return nil
}

func watch(ctx context.Context, baseURL, apiKey string, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	jobID := fs.String("job", "", "job id (required)")
	from := fs.Int64("from", 0, "resume from sequence")
	_ = fs.Parse(args)
	if *jobID == "" {
		return fmt.Errorf("-job is required")
	}

	out := zerolog.ConsoleWriter{Out: os.Stdout}
	logger := zerolog.New(out).With().Timestamp().Logger()

	client := stream.NewClient(stream.ClientConfig{BaseURL: baseURL, Token: apiKey}, &logger)
	return client.Connect(ctx, *jobID, *from, stream.Callbacks{
		OnEvent: func(ev stream.Event) {
			switch ev.Type {
			case "log":
				var seq int64
				if ev.Sequence != nil {
					seq = *ev.Sequence
				}
				fmt.Printf("[%d] %-11s %s\n", seq, ev.LogType, ev.Content)
			default:
				fmt.Printf("== %s: %s\n", ev.Type, ev.Message)
			}
		},
		OnStateChange: func(s stream.ConnState) {
			logger.Debug().Str("state", string(s)).Msg("connection state")
		},
	})
}

func stop(ctx context.Context, baseURL, apiKey string, args []string) error {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	jobID := fs.String("job", "", "job id (required)")
	_ = fs.Parse(args)
	if *jobID == "" {
		return fmt.Errorf("-job is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, baseURL+"/api/v1/jobs/"+*jobID, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out struct {
		Found bool `json:"found"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	if out.Found {
		fmt.Println("job cancelled")
	} else {
		fmt.Println("job already finished")
	}
	return nil
}
