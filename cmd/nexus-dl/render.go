package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/ytget/nexus-downloader/internal/model"
)

const progressWidth = 30

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("211"))
	statsStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	groupStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
)

func statusStyle(status model.TaskStatus) lipgloss.Style {
	switch status {
	case model.TaskStatusCompleted:
		return doneStyle
	case model.TaskStatusActive:
		return activeStyle
	case model.TaskStatusFailed, model.TaskStatusCancelled:
		return errorStyle
	}
	return idleStyle
}

// board redraws one progress line per task in place
type board struct {
	out   io.Writer
	bar   progress.Model
	order []string
	tasks map[string]model.DownloadTask
	lines int
}

func newBoard(out io.Writer) *board {
	return &board{
		out:   out,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressWidth)),
		tasks: make(map[string]model.DownloadTask),
	}
}

// update stores a snapshot; unknown ids are ignored
func (b *board) update(task model.DownloadTask) {
	if _, ok := b.tasks[task.ID]; ok {
		b.tasks[task.ID] = task
	}
}

func (b *board) track(task model.DownloadTask) {
	if _, ok := b.tasks[task.ID]; !ok {
		b.order = append(b.order, task.ID)
	}
	b.tasks[task.ID] = task
}

// finished reports whether every tracked task reached a terminal state
func (b *board) finished() bool {
	for _, t := range b.tasks {
		if !t.Status.IsFinished() {
			return false
		}
	}
	return true
}

func (b *board) failed() []model.DownloadTask {
	out := make([]model.DownloadTask, 0)
	for _, id := range b.order {
		if t := b.tasks[id]; t.Status == model.TaskStatusFailed {
			out = append(out, t)
		}
	}
	return out
}

func (b *board) render() string {
	lines := make([]string, 0, len(b.order))
	for _, id := range b.order {
		lines = append(lines, b.taskLine(b.tasks[id]))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// draw repaints the board over its previous output
func (b *board) draw() {
	if b.lines > 0 {
		fmt.Fprintf(b.out, "\x1b[%dA\x1b[J", b.lines)
	}
	text := b.render()
	fmt.Fprintln(b.out, text)
	b.lines = strings.Count(text, "\n") + 1
}

func (b *board) taskLine(t model.DownloadTask) string {
	title := titleStyle.Render(truncate(t.GetDisplayTitle(), 40))
	status := statusStyle(t.Status).Render(fmt.Sprintf("%-9s", t.Status))

	var stats string
	switch {
	case t.Status == model.TaskStatusFailed:
		stats = errorStyle.Render(truncate(t.LastError, 60))
	case t.Kind == model.KindCatalogImport && t.Status == model.TaskStatusCompleted:
		stats = statsStyle.Render(fmt.Sprintf("%d channels", len(t.Channels)))
	case t.SegmentsTotal > 0:
		stats = statsStyle.Render(fmt.Sprintf("%d/%d segments %s %s", t.SegmentsDone, t.SegmentsTotal, t.Speed, etaText(t)))
	default:
		stats = statsStyle.Render(fmt.Sprintf("%s %s", t.Speed, etaText(t)))
	}

	return fmt.Sprintf("%s %s %s %s", status, b.bar.ViewAs(t.Progress()), title, strings.TrimSpace(stats))
}

func etaText(t model.DownloadTask) string {
	if t.Status != model.TaskStatusActive || t.ETASec <= 0 {
		return ""
	}
	return "eta " + t.GetETAString()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
