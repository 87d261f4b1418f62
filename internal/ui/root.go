package ui

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	log "github.com/sirupsen/logrus"

	"github.com/ytget/nexus-downloader/internal/config"
	"github.com/ytget/nexus-downloader/internal/download"
	"github.com/ytget/nexus-downloader/internal/model"
	"github.com/ytget/nexus-downloader/internal/platform"
)

// StatusFilter enumerates visible subsets of tasks in the UI
type StatusFilter int

const (
	FilterAll StatusFilter = iota
	FilterActive
	FilterQueued
	FilterCompleted
	FilterErrors
)

var allFilters = []StatusFilter{FilterAll, FilterActive, FilterQueued, FilterCompleted, FilterErrors}

// Matches reports whether a task in status belongs to the filter tab
func (sf StatusFilter) Matches(status model.TaskStatus) bool {
	switch sf {
	case FilterActive:
		return status == model.TaskStatusActive
	case FilterQueued:
		return status == model.TaskStatusQueued || status == model.TaskStatusPaused
	case FilterCompleted:
		return status == model.TaskStatusCompleted
	case FilterErrors:
		return status == model.TaskStatusFailed || status == model.TaskStatusCancelled
	}
	return true
}

func (sf StatusFilter) labelKey() string {
	switch sf {
	case FilterActive:
		return KeyFilterActive
	case FilterQueued:
		return KeyFilterQueued
	case FilterCompleted:
		return KeyFilterCompleted
	case FilterErrors:
		return KeyFilterErrors
	}
	return KeyFilterAll
}

// RootUI represents the main window contents
type RootUI struct {
	window       fyne.Window
	manager      download.Manager
	settings     *config.Settings
	localization *Localization
	logger       *log.Entry

	// onSettingsSaved lets the caller apply settings to collaborators the UI does not own
	onSettingsSaved func()

	sourceEntry   *widget.Entry
	kindSelect    *widget.Select
	addBtn        *widget.Button
	taskList      *widget.List
	filterTabs    *container.AppTabs
	currentFilter StatusFilter

	tasksMutex sync.Mutex
	tasks      map[string]model.DownloadTask
	removed    map[string]struct{}
	filtered   []model.DownloadTask

	lastUIUpdate   time.Time
	refreshPending bool

	nightBanner *fyne.Container
	nightLabel  *widget.Label

	notificationContainer *fyne.Container
	notificationLabel     *widget.Label
	notificationTimer     *time.Timer
}

// NewRootUI builds the main window and subscribes to task updates
func NewRootUI(window fyne.Window, manager download.Manager, settings *config.Settings, onSettingsSaved func()) *RootUI {
	localization := NewLocalization()
	localization.SetLanguage(settings.GetLanguage())

	if err := platform.CreateDirectoryIfNotExists(settings.GetDownloadDirectory()); err != nil {
		log.WithError(err).Warn("cannot create download directory")
	}

	ui := &RootUI{
		window:          window,
		manager:         manager,
		settings:        settings,
		localization:    localization,
		logger:          log.WithField("component", "ui"),
		onSettingsSaved: onSettingsSaved,
		tasks:           make(map[string]model.DownloadTask),
		removed:         make(map[string]struct{}),
	}

	window.SetTitle(localization.GetText(KeyAppTitle))

	for _, t := range manager.GetAllTasks() {
		ui.tasks[t.ID] = t
	}
	manager.SetUpdateCallback(ui.onTaskUpdate)

	ui.setupUI()
	ui.setupMenu()
	ui.updateFilteredTasks()
	ui.refreshNightBanner(time.Now())
	return ui
}

// kindOptions maps the select labels to task kinds, in display order
func (ui *RootUI) kindOptions() ([]string, map[string]model.TaskKind) {
	l := ui.localization
	labels := []string{l.GetText(KeyKindStream), l.GetText(KeyKindDirect), l.GetText(KeyKindCatalog)}
	kinds := map[string]model.TaskKind{
		labels[0]: model.KindSegmented,
		labels[1]: model.KindDirect,
		labels[2]: model.KindCatalogImport,
	}
	return labels, kinds
}

func (ui *RootUI) setupUI() {
	l := ui.localization

	ui.sourceEntry = widget.NewEntry()
	ui.sourceEntry.SetPlaceHolder(l.GetText(KeyEnterSource))
	ui.sourceEntry.OnSubmitted = func(string) { ui.onAdd() }

	labels, _ := ui.kindOptions()
	ui.kindSelect = widget.NewSelect(labels, nil)
	ui.kindSelect.SetSelected(labels[0])

	ui.addBtn = widget.NewButton(l.GetText(KeyAdd), ui.onAdd)
	ui.addBtn.Importance = widget.HighImportance

	inputRow := container.NewBorder(nil, nil, nil, container.NewHBox(ui.kindSelect, ui.addBtn), ui.sourceEntry)

	ui.taskList = widget.NewList(
		func() int {
			ui.tasksMutex.Lock()
			defer ui.tasksMutex.Unlock()
			return len(ui.filtered)
		},
		func() fyne.CanvasObject {
			return NewTaskRow(model.DownloadTask{}, ui.localization, ui.taskActions())
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			ui.tasksMutex.Lock()
			if id < 0 || id >= len(ui.filtered) {
				ui.tasksMutex.Unlock()
				return
			}
			task := ui.filtered[id]
			ui.tasksMutex.Unlock()
			obj.(*TaskRow).UpdateTask(task)
		},
	)

	tabs := make([]*container.TabItem, 0, len(allFilters))
	for _, f := range allFilters {
		tabs = append(tabs, container.NewTabItem(l.GetText(f.labelKey()), widget.NewLabel("")))
	}
	ui.filterTabs = container.NewAppTabs(tabs...)
	ui.filterTabs.OnSelected = func(item *container.TabItem) {
		for i, tab := range ui.filterTabs.Items {
			if tab == item {
				ui.currentFilter = allFilters[i]
			}
		}
		ui.updateFilteredTasks()
	}

	ui.nightLabel = widget.NewLabel("")
	nightBg := canvas.NewRectangle(theme.Color(ColorNameNightBanner))
	ui.nightBanner = container.NewStack(nightBg, ui.nightLabel)
	ui.nightBanner.Hide()

	ui.notificationLabel = widget.NewLabel("")
	ui.notificationLabel.Wrapping = fyne.TextWrapWord
	closeBtn := widget.NewButton(IconClose, ui.hideNotification)
	closeBtn.Importance = widget.LowImportance
	ui.notificationContainer = container.NewBorder(nil, nil, nil, closeBtn, ui.notificationLabel)
	ui.notificationContainer.Hide()

	top := container.NewVBox(inputRow, ui.filterTabs, ui.nightBanner)
	content := container.NewBorder(top, ui.notificationContainer, nil, nil, ui.taskList)
	ui.window.SetContent(content)
}

func (ui *RootUI) setupMenu() {
	l := ui.localization

	fileMenu := fyne.NewMenu(l.GetText(KeyFile),
		fyne.NewMenuItem(IconSettings+" "+l.GetText(KeySettings), ui.showSettings),
	)
	queueMenu := fyne.NewMenu(l.GetText(KeyQueue),
		fyne.NewMenuItem(l.GetText(KeyPauseAll), ui.manager.PauseAll),
		fyne.NewMenuItem(l.GetText(KeyResumeAll), ui.manager.ResumeAll),
	)
	ui.window.SetMainMenu(fyne.NewMainMenu(fileMenu, queueMenu))
}

func (ui *RootUI) taskActions() TaskActions {
	return TaskActions{
		OnPause:    func(id string) { ui.runAction(id, ui.manager.Pause) },
		OnResume:   func(id string) { ui.runAction(id, ui.manager.Resume) },
		OnRestart:  func(id string) { ui.runAction(id, ui.manager.Restart) },
		OnCancel:   func(id string) { ui.runAction(id, ui.manager.Cancel) },
		OnRemove:   ui.onRemoveTask,
		OnReveal:   ui.onReveal,
		OnChannels: ui.onShowChannels,
	}
}

// runAction calls a manager operation off the UI goroutine, since Pause and
// Cancel wait for the running job to stop
func (ui *RootUI) runAction(id string, action func(string) error) {
	go func() {
		if err := action(id); err != nil {
			ui.logger.WithField("task", id).WithError(err).Warn("task action failed")
			fyne.Do(func() { ui.showNotification(err.Error()) })
		}
	}()
}

func (ui *RootUI) onAdd() {
	source := strings.TrimSpace(ui.sourceEntry.Text)
	if source == "" {
		ui.showNotification(ui.localization.GetText(KeyPleaseEnterSource))
		return
	}
	_, kinds := ui.kindOptions()
	kind, ok := kinds[ui.kindSelect.Selected]
	if !ok {
		kind = model.KindSegmented
	}
	if platform.IsXtreamSource(source) {
		kind = model.KindCatalogImport
	}
	ui.addTask(source, kind)
	ui.sourceEntry.SetText("")
}

func (ui *RootUI) addTask(source string, kind model.TaskKind) {
	task, err := ui.manager.AddTask(source, kind)
	if err != nil {
		if errors.Is(err, download.ErrDuplicateTask) {
			ui.logger.WithField("url", source).Info("task already queued")
		}
		ui.showNotification(err.Error())
		return
	}
	ui.logger.WithFields(log.Fields{"task": task.ID, "kind": kind}).Info("task added")
	ui.storeTask(task)
	ui.updateFilteredTasks()
	ui.showNotification(ui.localization.GetText(KeyTaskAdded))
}

func (ui *RootUI) onRemoveTask(id string) {
	go func() {
		if err := ui.manager.Remove(id); err != nil && !errors.Is(err, model.ErrTaskNotFound) {
			ui.logger.WithField("task", id).WithError(err).Warn("remove failed")
			fyne.Do(func() { ui.showNotification(err.Error()) })
			return
		}
		ui.tasksMutex.Lock()
		delete(ui.tasks, id)
		ui.removed[id] = struct{}{}
		ui.tasksMutex.Unlock()
		fyne.Do(ui.updateFilteredTasks)
	}()
}

func (ui *RootUI) onReveal(path string) {
	if err := platform.OpenFileInManager(path); err != nil {
		ui.logger.WithError(err).WithField("path", path).Warn("cannot reveal file")
		ui.showNotification(ui.localization.GetText(KeyErrorOpeningFile) + ": " + err.Error())
	}
}

func (ui *RootUI) onShowChannels(task model.DownloadTask) {
	ShowChannelsDialog(task, ui.localization, ui.window, func(ch model.ChannelEntry) {
		ui.addTask(ch.URL, channelKind(ch.URL))
	})
}

// channelKind downloads channel entries as streams or files, never as nested catalogs
func channelKind(rawURL string) model.TaskKind {
	if kind := platform.GuessTaskKind(rawURL); kind == model.KindSegmented {
		return kind
	}
	return model.KindDirect
}

func (ui *RootUI) showSettings() {
	NewSettingsDialog(ui.settings, ui.localization, ui.window, func() {
		if err := platform.CreateDirectoryIfNotExists(ui.settings.GetDownloadDirectory()); err != nil {
			ui.logger.WithError(err).Warn("cannot create download directory")
		}
		ui.localization.SetLanguage(ui.settings.GetLanguage())
		if ui.onSettingsSaved != nil {
			ui.onSettingsSaved()
		}
		ui.refreshNightBanner(time.Now())
	}).Show()
}

// storeTask records a snapshot and reports whether it just completed
func (ui *RootUI) storeTask(task model.DownloadTask) (completed bool) {
	ui.tasksMutex.Lock()
	defer ui.tasksMutex.Unlock()
	if _, gone := ui.removed[task.ID]; gone {
		return false
	}
	prev, known := ui.tasks[task.ID]
	ui.tasks[task.ID] = task
	return task.Status == model.TaskStatusCompleted && (!known || prev.Status != model.TaskStatusCompleted)
}

// onTaskUpdate receives snapshots from the manager goroutine
func (ui *RootUI) onTaskUpdate(task model.DownloadTask) {
	ui.tasksMutex.Lock()
	prev, known := ui.tasks[task.ID]
	ui.tasksMutex.Unlock()

	completed := ui.storeTask(task)
	failed := task.Status == model.TaskStatusFailed && (!known || prev.Status != model.TaskStatusFailed)

	fyne.Do(func() {
		switch {
		case completed:
			ui.showNotification(ui.localization.GetText(KeyTaskCompleted) + ": " + task.GetDisplayTitle())
			if ui.settings.GetAutoRevealOnComplete() && task.OutputPath != "" {
				ui.onReveal(task.OutputPath)
			}
		case failed:
			ui.showNotification(ui.localization.GetText(KeyTaskFailed) + ": " + task.LastError)
		}
		ui.scheduleRefresh()
	})
}

// scheduleRefresh coalesces list refreshes to one per UIUpdateDebounce
func (ui *RootUI) scheduleRefresh() {
	if ui.refreshPending {
		return
	}
	wait := UIUpdateDebounce - time.Since(ui.lastUIUpdate)
	if wait <= 0 {
		ui.lastUIUpdate = time.Now()
		ui.updateFilteredTasks()
		return
	}
	ui.refreshPending = true
	time.AfterFunc(wait, func() {
		fyne.Do(func() {
			ui.refreshPending = false
			ui.lastUIUpdate = time.Now()
			ui.updateFilteredTasks()
		})
	})
}

// updateFilteredTasks rebuilds the visible list, newest task first
func (ui *RootUI) updateFilteredTasks() {
	ui.tasksMutex.Lock()
	ui.filtered = ui.filtered[:0]
	for _, t := range ui.tasks {
		if ui.currentFilter.Matches(t.Status) {
			ui.filtered = append(ui.filtered, t)
		}
	}
	sort.Slice(ui.filtered, func(i, j int) bool {
		return ui.filtered[i].CreatedAt.After(ui.filtered[j].CreatedAt)
	})
	ui.tasksMutex.Unlock()

	ui.refreshNightBanner(time.Now())
	if ui.taskList != nil {
		ui.taskList.Refresh()
	}
}

// refreshNightBanner shows the banner while queued work is held by night mode
func (ui *RootUI) refreshNightBanner(now time.Time) {
	if ui.nightBanner == nil {
		return
	}
	night := ui.settings.GetNightWindow()
	if !night.Contains(now) || !ui.hasQueued() {
		ui.nightBanner.Hide()
		return
	}
	until := night.NextEnd(now).Format("15:04")
	ui.nightLabel.SetText(IconMoon + " " + ui.localization.GetText(KeyNightHold) + " " + until)
	ui.nightBanner.Show()
}

func (ui *RootUI) hasQueued() bool {
	ui.tasksMutex.Lock()
	defer ui.tasksMutex.Unlock()
	for _, t := range ui.tasks {
		if t.Status == model.TaskStatusQueued {
			return true
		}
	}
	return false
}

func (ui *RootUI) showNotification(text string) {
	ui.notificationLabel.SetText(cleanText(text))
	ui.notificationContainer.Show()
	if ui.notificationTimer != nil {
		ui.notificationTimer.Stop()
	}
	ui.notificationTimer = time.AfterFunc(ToastAutoHide, func() {
		fyne.Do(ui.hideNotification)
	})
}

func (ui *RootUI) hideNotification() {
	ui.notificationContainer.Hide()
}
