// File: cmd/insight/main.go
//
// insight is a small operator CLI that submits a research question to a
// running server and polls until the report is ready.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "insight",
		Usage: "submit research questions and fetch analysis reports",
		Commands: []*cli.Command{
			{
				Name:      "analyze",
				Usage:     "submit a question and wait for the full report",
				ArgsUsage: "<research question>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "path to an optional .env file",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:  "base-url",
						Usage: "server base URL",
						Value: "http://localhost:8080",
					},
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "polling interval",
						Value: 2 * time.Second,
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "overall deadline for the analysis",
						Value: 10 * time.Minute,
					},
				},
				Action: analyzeAction,
			},
			{
				Name:      "status",
				Usage:     "print the current status of a job",
				ArgsUsage: "<analysis id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "base-url",
						Usage: "server base URL",
						Value: "http://localhost:8080",
					},
				},
				Action: statusAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

type submitResponse struct {
	AnalysisID string `json:"analysis_id"`
	Status     string `json:"status"`
}

type statusResponse struct {
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	CurrentStep  string `json:"current_step"`
	ErrorMessage string `json:"error_message"`
}

func analyzeAction(ctx context.Context, cmd *cli.Command) error {
	question := cmd.Args().First()
	if question == "" {
		return errors.New("usage: insight analyze <research question>")
	}
	_ = godotenv.Load(cmd.String("env"))

	base := cmd.String("base-url")
	client := &http.Client{Timeout: 30 * time.Second}

	sub, err := submit(ctx, client, base, question)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "submitted %s (%s)\n", sub.AnalysisID, sub.Status)

	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	ticker := time.NewTicker(cmd.Duration("interval"))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("gave up waiting for %s: %w", sub.AnalysisID, ctx.Err())
		case <-ticker.C:
		}

		st, err := pollStatus(ctx, client, base, sub.AnalysisID)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%-12s %3d%%  %s\n", st.Status, st.Progress, st.CurrentStep)

		switch st.Status {
		case "COMPLETE":
			return printResult(ctx, client, base, sub.AnalysisID)
		case "ERROR":
			return fmt.Errorf("analysis failed: %s", st.ErrorMessage)
		}
	}
}

func statusAction(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return errors.New("usage: insight status <analysis id>")
	}
	client := &http.Client{Timeout: 30 * time.Second}
	st, err := pollStatus(ctx, client, cmd.String("base-url"), id)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(st)
}

func submit(ctx context.Context, client *http.Client, base, question string) (*submitResponse, error) {
	body, _ := json.Marshal(map[string]string{"research_question": question})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("submit rejected: status %d, body: %s", resp.StatusCode, string(b))
	}
	var sub submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func pollStatus(ctx context.Context, client *http.Client, base, id string) (*statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/v1/analyze/"+id+"/status", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status lookup failed: status %d, body: %s", resp.StatusCode, string(b))
	}
	var st statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

func printResult(ctx context.Context, client *http.Client, base, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/v1/analyze/"+id, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("result fetch failed: status %d, body: %s", resp.StatusCode, string(b))
	}
	_, err = io.Copy(os.Stdout, resp.Body)
	return err
}
