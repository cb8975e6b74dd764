package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"blockvm/internal/campaign"
	"blockvm/internal/project"
	"blockvm/internal/ui"
)

// uiMode is the value of --ui.
type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	mode := uiMode(strings.TrimSpace(strings.ToLower(value)))
	switch mode {
	case "":
		return uiModeAuto, nil
	case uiModeAuto, uiModeOn, uiModeOff:
		return mode, nil
	}
	return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
}

// shouldUseTUI decides on the progress UI. Quiet runs never get one; auto
// follows whether stdout is a terminal.
func shouldUseTUI(mode uiMode, quiet bool) bool {
	if quiet || mode == uiModeOff {
		return false
	}
	return mode == uiModeOn || isTerminal(os.Stdout)
}

type campaignOutcome struct {
	result *campaign.Result
	err    error
}

// runCampaignWithUI runs the campaign in the background and renders its
// progress until the event channel is closed.
func runCampaignWithUI(ctx context.Context, title string, p *project.Project, opts campaign.Options) (*campaign.Result, error) {
	events := make(chan campaign.Event, 256)
	outcomeCh := make(chan campaignOutcome, 1)

	go func() {
		opts.Progress = campaign.ChannelSink{Ch: events}
		res, err := campaign.Run(ctx, p, opts)
		outcomeCh <- campaignOutcome{result: res, err: err}
		close(events)
	}()

	runs := max(opts.Runs, 1)
	model := ui.NewProgressModel(title, runs, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	// the UI may quit before the campaign is done
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
