package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
)

var (
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	replyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	linkStyle    = lipgloss.NewStyle().Underline(true)
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
)

// errorColor styles errors printed outside the TUI, before it starts or
// after it exits.
var errorColor = color.New(color.FgRed, color.Bold)

func printError(out io.Writer, format string, args ...any) {
	errorColor.Fprintf(out, "✗ %s\n", fmt.Sprintf(format, args...))
}

func renderReply(text, videoURL string) string {
	s := replyStyle.Render("✓ " + text)
	if videoURL != "" {
		s += "\n  " + linkStyle.Render(videoURL)
	}
	return s
}

func renderBanner(server, chatID string) string {
	session := dimStyle.Render("history is off")
	if chatID != "" {
		session = dimStyle.Render("chat:  ") + " " + chatID
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("AnimAI Studio"),
		dimStyle.Render("server:")+" "+server,
		session,
	)
}
