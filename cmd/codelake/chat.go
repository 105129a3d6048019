// This file implements the interactive chat interface.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"codelake/internal/session"
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	highConfidence = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	midConfidence  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	lowConfidence  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// runChat runs the interactive console loop against a single session.
func runChat(ctx context.Context) error {
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.updater != nil {
		if err := a.updater.Start(); err == nil {
			defer a.updater.Stop()
		}
	}

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)

	fmt.Println(headerStyle.Render("codelake"))
	fmt.Println(dimStyle.Render("Ask for SDK code. Type /help for commands, /exit to quit."))
	fmt.Println()

	sessionID := ""
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print(promptStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := handleCommand(ctx, a, line, &sessionID); quit {
				return nil
			}
			continue
		}

		resp, id, err := a.registry.Process(ctx, sessionID, line)
		if err != nil {
			fmt.Println(lowConfidence.Render("error: " + err.Error()))
			continue
		}
		sessionID = id

		switch resp.Type {
		case "code":
			printCodeResponse(resp)
		default:
			if renderer != nil {
				if out, err := renderer.Render(resp.Message); err == nil {
					fmt.Print(out)
					continue
				}
			}
			fmt.Println(resp.Message)
		}
	}
}

func handleCommand(ctx context.Context, a *app, line string, sessionID *string) bool {
	switch strings.Fields(line)[0] {
	case "/exit", "/quit":
		return true
	case "/new":
		*sessionID = ""
		fmt.Println(dimStyle.Render("started a fresh session"))
	case "/stats":
		count, err := a.store.Count(ctx)
		if err != nil {
			fmt.Println(lowConfidence.Render("error: " + err.Error()))
			return false
		}
		fmt.Printf("documents: %d, active sessions: %d\n", count, a.registry.Len())
	case "/update":
		if a.updater == nil {
			fmt.Println(dimStyle.Render("no documentation directories configured"))
			return false
		}
		if err := a.updater.ForceUpdate(ctx); err != nil {
			fmt.Println(lowConfidence.Render("update failed: " + err.Error()))
		}
	case "/help":
		fmt.Println(`/new     start a fresh session
/stats   show store and session counts
/update  re-ingest configured documentation now
/exit    quit`)
	default:
		fmt.Println(dimStyle.Render("unknown command, try /help"))
	}
	return false
}

func printCodeResponse(resp session.Response) {
	fmt.Println(resp.Message)
	if resp.Confidence != nil {
		fmt.Println(confidenceStyle(*resp.Confidence).Render(
			fmt.Sprintf("confidence: %.2f", *resp.Confidence)))
	}
	fmt.Println()
}

func confidenceStyle(score float64) lipgloss.Style {
	switch {
	case score > 0.8:
		return highConfidence
	case score > 0.5:
		return midConfidence
	default:
		return lowConfidence
	}
}
