/*-------------------------------------------------------------------------
 *
 * QueryChat Natural Language SQL Agent
 *
 * Copyright (c) 2025, the QueryChat authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"querychat/internal/database"
	"querychat/internal/logging"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session in the terminal",
	RunE:  runChat,
}

const chatSessionID = "terminal"

func runChat(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	quietInteractiveLogging()

	rt, err := buildRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.handle.Close()

	fmt.Printf("QueryChat %s - connected to %s backend. Ask a question, or type /help.\n\n",
		Version, rt.handle.Kind())

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "querychat> ",
		HistoryFile:       historyFilePath(),
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	ctx := context.Background()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("Goodbye!")
				return nil
			}
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := handleSlashCommand(ctx, rt, input); quit {
				fmt.Println("Goodbye!")
				return nil
			}
			continue
		}

		answer, err := rt.engine.Ask(ctx, chatSessionID, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		if answer.SQL != "" {
			fmt.Printf("\n[sql] %s\n", answer.SQL)
		}
		printMarkdown(answer.Text)
	}
}

// handleSlashCommand runs a /command and reports whether to quit
func handleSlashCommand(ctx context.Context, rt *runtime, input string) bool {
	parts := strings.Fields(input)
	switch parts[0] {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Print(`Commands:
  /schema   Show the database schema
  /clear    Clear the conversation history
  /sql      Show the last executed SQL query and its result
  /quit     Exit
`)

	case "/schema":
		schema, err := database.Describe(ctx, rt.handle)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return false
		}
		fmt.Println(schema)

	case "/clear":
		rt.engine.Store().Clear(chatSessionID)
		fmt.Println("Conversation cleared.")

	case "/sql":
		sess, ok := rt.engine.Store().Get(chatSessionID)
		if !ok {
			fmt.Println("No query has been executed yet.")
			return false
		}
		lastSQL, lastResult := sess.Last()
		if lastSQL == "" {
			fmt.Println("No query has been executed yet.")
			return false
		}
		fmt.Printf("%s\n", lastSQL)
		if lastResult != nil {
			fmt.Printf("%d rows", lastResult.TotalRows)
			if lastResult.Note != "" {
				fmt.Printf(" (%s)", lastResult.Note)
			}
			fmt.Println()
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s (type /help for available commands)\n", parts[0])
	}
	return false
}

// printMarkdown renders model output for the terminal, falling back to
// plain text when no renderer is available.
func printMarkdown(text string) {
	width := 100
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 && w < width {
		width = w
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		fmt.Println(text)
		return
	}

	out, err := r.Render(text)
	if err != nil {
		fmt.Println(text)
		return
	}
	fmt.Print(out)
}

// quietInteractiveLogging raises the log level to ERROR so JSON log
// lines do not interleave with interactive output. An explicit
// QUERYCHAT_LOG_LEVEL still wins.
func quietInteractiveLogging() {
	if os.Getenv("QUERYCHAT_LOG_LEVEL") == "" {
		logging.SetLevel(logging.LevelError)
	}
}

func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".querychat_history")
}
