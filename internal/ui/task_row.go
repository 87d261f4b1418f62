package ui

import (
	"fmt"
	"image/color"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/ytget/nexus-downloader/internal/model"
)

// File size formatting constants
const (
	FileSizeUnit  = 1024
	FileSizeUnits = "KMGTPE"
)

// MaxProgressPercent caps the textual percent
const MaxProgressPercent = 100

// formatFileSize formats file size in bytes to human readable format
func formatFileSize(bytes int64) string {
	if bytes < FileSizeUnit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(FileSizeUnit), 0
	for n := bytes / FileSizeUnit; n >= FileSizeUnit; n /= FileSizeUnit {
		div *= FileSizeUnit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), FileSizeUnits[exp])
}

// TaskActions holds the callbacks a TaskRow forwards button presses to
type TaskActions struct {
	OnPause    func(taskID string)
	OnResume   func(taskID string)
	OnRestart  func(taskID string)
	OnCancel   func(taskID string)
	OnRemove   func(taskID string)
	OnReveal   func(filePath string)
	OnChannels func(task model.DownloadTask)
}

// primaryAction names the main button action for a status
type primaryAction int

const (
	actionNone primaryAction = iota
	actionPause
	actionResume
	actionRestart
)

func primaryActionFor(status model.TaskStatus) primaryAction {
	switch status {
	case model.TaskStatusQueued, model.TaskStatusActive:
		return actionPause
	case model.TaskStatusPaused:
		return actionResume
	case model.TaskStatusFailed, model.TaskStatusCancelled:
		return actionRestart
	}
	return actionNone
}

// TaskRow renders one task snapshot
type TaskRow struct {
	widget.BaseWidget

	task         model.DownloadTask
	localization *Localization
	actions      TaskActions

	titleLabel    *widget.Label
	kindLabel     *widget.Label
	statusLabel   *widget.Label
	progressLabel *widget.Label
	speedEtaLabel *widget.Label
	progressBar   *widget.ProgressBar

	primaryBtn  *widget.Button
	cancelBtn   *widget.Button
	revealBtn   *widget.Button
	channelsBtn *widget.Button
	removeBtn   *widget.Button
}

// NewTaskRow creates a new task row widget
func NewTaskRow(task model.DownloadTask, localization *Localization, actions TaskActions) *TaskRow {
	tr := &TaskRow{
		task:         task,
		localization: localization,
		actions:      actions,
	}
	tr.ExtendBaseWidget(tr)
	tr.createUI()
	tr.updateFromTask()
	return tr
}

// Task returns the snapshot currently displayed
func (tr *TaskRow) Task() model.DownloadTask {
	return tr.task
}

// UpdateTask replaces the displayed snapshot
func (tr *TaskRow) UpdateTask(task model.DownloadTask) {
	tr.task = task
	tr.updateFromTask()
	tr.Refresh()
}

func (tr *TaskRow) createUI() {
	tr.titleLabel = widget.NewLabel("")
	tr.titleLabel.TextStyle = fyne.TextStyle{Bold: true}
	tr.titleLabel.Truncation = fyne.TextTruncateEllipsis

	tr.kindLabel = widget.NewLabel("")
	tr.kindLabel.TextStyle = fyne.TextStyle{Italic: true}

	tr.statusLabel = widget.NewLabel("")
	tr.statusLabel.Alignment = fyne.TextAlignTrailing
	tr.progressLabel = widget.NewLabel("")
	tr.progressLabel.Alignment = fyne.TextAlignTrailing
	tr.speedEtaLabel = widget.NewLabel("")
	tr.speedEtaLabel.TextStyle = fyne.TextStyle{Monospace: true}
	tr.progressBar = widget.NewProgressBar()

	tr.primaryBtn = widget.NewButton("", tr.onPrimary)
	tr.cancelBtn = widget.NewButton(tr.localization.GetText(KeyCancel), func() {
		if tr.actions.OnCancel != nil {
			tr.actions.OnCancel(tr.task.ID)
		}
	})
	tr.revealBtn = widget.NewButton(IconFolder, func() {
		if tr.actions.OnReveal != nil && tr.task.OutputPath != "" {
			tr.actions.OnReveal(tr.task.OutputPath)
		}
	})
	tr.channelsBtn = widget.NewButton(IconList+" "+tr.localization.GetText(KeyChannels), func() {
		if tr.actions.OnChannels != nil {
			tr.actions.OnChannels(tr.task)
		}
	})
	tr.removeBtn = widget.NewButton(IconClose, func() {
		if tr.actions.OnRemove != nil {
			tr.actions.OnRemove(tr.task.ID)
		}
	})
	tr.removeBtn.Importance = widget.LowImportance
}

func (tr *TaskRow) onPrimary() {
	id := tr.task.ID
	switch primaryActionFor(tr.task.Status) {
	case actionPause:
		if tr.actions.OnPause != nil {
			tr.actions.OnPause(id)
		}
	case actionResume:
		if tr.actions.OnResume != nil {
			tr.actions.OnResume(id)
		}
	case actionRestart:
		if tr.actions.OnRestart != nil {
			tr.actions.OnRestart(id)
		}
	}
}

func (tr *TaskRow) updateFromTask() {
	t := tr.task

	tr.titleLabel.SetText(cleanText(t.GetDisplayTitle()))
	tr.kindLabel.SetText(tr.kindText(t.Kind))

	switch t.Status {
	case model.TaskStatusFailed:
		tr.statusLabel.Importance = widget.DangerImportance
		tr.statusLabel.SetText(IconError + " " + t.Status.String())
	case model.TaskStatusCompleted:
		tr.statusLabel.Importance = widget.SuccessImportance
		tr.statusLabel.SetText(t.Status.String())
	case model.TaskStatusActive:
		tr.statusLabel.Importance = widget.HighImportance
		tr.statusLabel.SetText(IconPlay + " " + t.Status.String())
	case model.TaskStatusPaused:
		tr.statusLabel.Importance = widget.MediumImportance
		tr.statusLabel.SetText(IconPause + " " + t.Status.String())
	case model.TaskStatusQueued:
		tr.statusLabel.Importance = widget.MediumImportance
		tr.statusLabel.SetText(IconQueued + " " + t.Status.String())
	case model.TaskStatusCancelled:
		tr.statusLabel.Importance = widget.WarningImportance
		tr.statusLabel.SetText(IconStop + " " + t.Status.String())
	default:
		tr.statusLabel.Importance = widget.MediumImportance
		tr.statusLabel.SetText(t.Status.String())
	}

	tr.progressBar.SetValue(t.Progress())
	tr.progressLabel.SetText(progressText(t))
	tr.speedEtaLabel.SetText(speedEtaText(t))

	tr.updateButtons()
}

func (tr *TaskRow) updateButtons() {
	t := tr.task

	switch primaryActionFor(t.Status) {
	case actionPause:
		tr.primaryBtn.SetText(IconPause + " " + tr.localization.GetText(KeyPause))
		tr.primaryBtn.Enable()
	case actionResume:
		tr.primaryBtn.SetText(IconPlay + " " + tr.localization.GetText(KeyResume))
		tr.primaryBtn.Enable()
	case actionRestart:
		tr.primaryBtn.SetText(tr.localization.GetText(KeyRestart))
		tr.primaryBtn.Enable()
	default:
		tr.primaryBtn.SetText(tr.localization.GetText(KeyPause))
		tr.primaryBtn.Disable()
	}

	if t.Status.IsFinished() {
		tr.cancelBtn.Disable()
	} else {
		tr.cancelBtn.Enable()
	}

	if t.Status == model.TaskStatusCompleted && t.OutputPath != "" {
		tr.revealBtn.Enable()
	} else {
		tr.revealBtn.Disable()
	}

	if t.Kind == model.KindCatalogImport {
		tr.channelsBtn.Show()
		if len(t.Channels) > 0 {
			tr.channelsBtn.Enable()
		} else {
			tr.channelsBtn.Disable()
		}
	} else {
		tr.channelsBtn.Hide()
	}
}

func (tr *TaskRow) kindText(kind model.TaskKind) string {
	switch kind {
	case model.KindSegmented:
		return tr.localization.GetText(KeyKindStream)
	case model.KindDirect:
		return tr.localization.GetText(KeyKindDirect)
	case model.KindCatalogImport:
		return tr.localization.GetText(KeyKindCatalog)
	}
	return kind.String()
}

// progressText renders percent plus segment or byte counters
func progressText(t model.DownloadTask) string {
	percent := t.Percent()
	if percent > MaxProgressPercent {
		percent = MaxProgressPercent
	}
	text := fmt.Sprintf(ProgressLabelFormat, percent)
	switch {
	case t.Kind == model.KindCatalogImport && len(t.Channels) > 0:
		text = fmt.Sprintf("%d", len(t.Channels))
	case t.SegmentsTotal > 0:
		text += MiddleDotSeparator + fmt.Sprintf(SegmentsLabelFormat, t.SegmentsDone, t.SegmentsTotal)
	case t.BytesTotal != nil:
		text += MiddleDotSeparator + formatFileSize(*t.BytesTotal)
	}
	return text
}

// speedEtaText renders speed and ETA for active tasks and the error for failed ones
func speedEtaText(t model.DownloadTask) string {
	switch t.Status {
	case model.TaskStatusActive:
		parts := make([]string, 0, 2)
		if t.Speed != "" {
			parts = append(parts, t.Speed)
		}
		if t.ETASec > 0 {
			parts = append(parts, t.GetETAString())
		}
		if len(parts) == 0 {
			return DashPlaceholder
		}
		return strings.Join(parts, MiddleDotSeparator)
	case model.TaskStatusFailed:
		return cleanText(t.LastError)
	case model.TaskStatusPaused:
		if t.BytesDone > 0 {
			return formatFileSize(t.BytesDone)
		}
	}
	return ""
}

// cleanText flattens control whitespace so labels stay on one line
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.TrimSpace(s)
}

// CreateRenderer creates the widget renderer
func (tr *TaskRow) CreateRenderer() fyne.WidgetRenderer {
	fixedWidth := func(w float32, obj fyne.CanvasObject) fyne.CanvasObject {
		spacer := canvas.NewRectangle(color.Transparent)
		spacer.SetMinSize(fyne.NewSize(w, obj.MinSize().Height))
		return container.NewStack(spacer, obj)
	}

	info := container.NewVBox(
		fixedWidth(StatusLabelWidth, tr.statusLabel),
		container.NewHBox(
			fixedWidth(SpeedLabelWidth, tr.speedEtaLabel),
			fixedWidth(PercentLabelWidth, tr.progressLabel),
		),
	)
	actions := container.NewHBox(tr.primaryBtn, tr.cancelBtn, tr.revealBtn, tr.channelsBtn, tr.removeBtn)
	header := container.NewBorder(nil, nil, nil, info, container.NewVBox(tr.titleLabel, tr.kindLabel))
	body := container.NewVBox(header, tr.progressBar, container.NewBorder(nil, nil, nil, actions), widget.NewSeparator())

	return &taskRowRenderer{layout: body}
}

type taskRowRenderer struct {
	layout *fyne.Container
}

func (r *taskRowRenderer) Layout(size fyne.Size) {
	if size.Width < RowMinWidth {
		size.Width = RowMinWidth
	}
	r.layout.Resize(size)
}

func (r *taskRowRenderer) MinSize() fyne.Size {
	size := r.layout.MinSize()
	if size.Height < RowMinHeight {
		size.Height = RowMinHeight
	}
	return size
}

func (r *taskRowRenderer) Refresh() {
	r.layout.Refresh()
}

func (r *taskRowRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.layout}
}

func (r *taskRowRenderer) Destroy() {}
