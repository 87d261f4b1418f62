package ui

import (
	"sort"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/ytget/nexus-downloader/internal/config"
	"github.com/ytget/nexus-downloader/internal/model"
)

// SettingsDialog represents the settings configuration dialog
type SettingsDialog struct {
	settings     *config.Settings
	localization *Localization
	window       fyne.Window
	dialog       *dialog.ConfirmDialog
	onSaved      func()

	downloadDirEntry    *widget.Entry
	maxParallelEntry    *widget.Entry
	speedLimitEntry     *widget.Entry
	segmentWorkersEntry *widget.Entry
	ffmpegEntry         *widget.Entry
	profilesEntry       *widget.Entry
	nightCheck          *widget.Check
	nightStartEntry     *widget.Entry
	nightEndEntry       *widget.Entry
	insecureCheck       *widget.Check
	autoRevealCheck     *widget.Check
	languageSelect      *widget.Select
}

// NewSettingsDialog creates a new settings dialog; onSaved runs after a successful save
func NewSettingsDialog(settings *config.Settings, localization *Localization, window fyne.Window, onSaved func()) *SettingsDialog {
	sd := &SettingsDialog{
		settings:     settings,
		localization: localization,
		window:       window,
		onSaved:      onSaved,
	}

	sd.createUI()
	return sd
}

// Show displays the settings dialog
func (sd *SettingsDialog) Show() {
	sd.loadCurrentSettings()
	sd.dialog.Show()
}

func (sd *SettingsDialog) createUI() {
	l := sd.localization

	sd.downloadDirEntry = widget.NewEntry()
	browseDirBtn := widget.NewButton(l.GetText(KeyBrowse), sd.onBrowseDirectory)
	downloadDirRow := container.NewBorder(nil, nil, nil, browseDirBtn, sd.downloadDirEntry)

	sd.maxParallelEntry = widget.NewEntry()
	sd.maxParallelEntry.SetPlaceHolder("1-" + strconv.Itoa(config.MaxParallelLimit))
	sd.speedLimitEntry = widget.NewEntry()
	sd.speedLimitEntry.SetPlaceHolder("0")
	sd.segmentWorkersEntry = widget.NewEntry()
	sd.segmentWorkersEntry.SetPlaceHolder("1-" + strconv.Itoa(config.MaxSegmentWorkers))
	sd.ffmpegEntry = widget.NewEntry()
	sd.ffmpegEntry.SetPlaceHolder(config.DefaultFFmpegPath)
	sd.profilesEntry = widget.NewEntry()
	sd.profilesEntry.SetPlaceHolder(config.DefaultProfilesPath())

	sd.nightStartEntry = widget.NewEntry()
	sd.nightStartEntry.SetPlaceHolder(config.DefaultNightStart)
	sd.nightEndEntry = widget.NewEntry()
	sd.nightEndEntry.SetPlaceHolder(config.DefaultNightEnd)
	sd.nightCheck = widget.NewCheck(IconMoon+" "+l.GetText(KeyNightMode), func(on bool) {
		if on {
			sd.nightStartEntry.Enable()
			sd.nightEndEntry.Enable()
		} else {
			sd.nightStartEntry.Disable()
			sd.nightEndEntry.Disable()
		}
	})
	nightRow := container.NewGridWithColumns(4,
		widget.NewLabel(l.GetText(KeyNightStart)), sd.nightStartEntry,
		widget.NewLabel(l.GetText(KeyNightEnd)), sd.nightEndEntry,
	)

	sd.insecureCheck = widget.NewCheck(l.GetText(KeyInsecureTLS), nil)
	sd.autoRevealCheck = widget.NewCheck(l.GetText(KeyAutoReveal), nil)

	languages := l.GetAvailableLanguages()
	codes := make([]string, 0, len(languages)+1)
	codes = append(codes, config.DefaultLanguage)
	for code := range languages {
		codes = append(codes, code)
	}
	sort.Strings(codes[1:])
	sd.languageSelect = widget.NewSelect(codes, nil)

	restartNote := widget.NewLabel(l.GetText(KeyRestartRequired))
	restartNote.TextStyle = fyne.TextStyle{Italic: true}

	form := container.NewVBox(
		widget.NewLabel(l.GetText(KeyDownloadDirectory)),
		downloadDirRow,
		widget.NewLabel(l.GetText(KeyMaxParallel)),
		sd.maxParallelEntry,
		widget.NewLabel(l.GetText(KeySpeedLimit)),
		sd.speedLimitEntry,
		widget.NewLabel(l.GetText(KeySegmentWorkers)),
		sd.segmentWorkersEntry,
		widget.NewSeparator(),
		sd.nightCheck,
		nightRow,
		widget.NewSeparator(),
		widget.NewLabel(l.GetText(KeyFFmpegPath)),
		sd.ffmpegEntry,
		widget.NewLabel(l.GetText(KeyProfilesPath)),
		sd.profilesEntry,
		sd.insecureCheck,
		restartNote,
		widget.NewSeparator(),
		sd.autoRevealCheck,
		widget.NewLabel(IconLanguage+" "+l.GetText(KeyLanguage)),
		sd.languageSelect,
	)

	sd.dialog = dialog.NewCustomConfirm(
		l.GetText(KeySettings),
		l.GetText(KeySave),
		l.GetText(KeyCancel),
		container.NewVScroll(form),
		sd.onSave,
		sd.window,
	)

	sd.dialog.Resize(fyne.NewSize(SettingsDialogWidth, SettingsDialogHeight))
}

func (sd *SettingsDialog) loadCurrentSettings() {
	sd.downloadDirEntry.SetText(sd.settings.GetDownloadDirectory())
	sd.maxParallelEntry.SetText(strconv.Itoa(sd.settings.GetMaxParallelDownloads()))
	sd.speedLimitEntry.SetText(strconv.Itoa(sd.settings.GetSpeedLimitKB()))
	sd.segmentWorkersEntry.SetText(strconv.Itoa(sd.settings.GetSegmentWorkers()))
	sd.ffmpegEntry.SetText(sd.settings.GetFFmpegPath())
	sd.profilesEntry.SetText(sd.settings.GetProfilesPath())

	night := sd.settings.GetNightWindow()
	sd.nightStartEntry.SetText(model.FormatClock(night.Start))
	sd.nightEndEntry.SetText(model.FormatClock(night.End))
	sd.nightCheck.SetChecked(night.Enabled)
	sd.nightCheck.OnChanged(night.Enabled)

	sd.insecureCheck.SetChecked(sd.settings.GetInsecureTLS())
	sd.autoRevealCheck.SetChecked(sd.settings.GetAutoRevealOnComplete())
	sd.languageSelect.SetSelected(sd.settings.GetLanguage())
}

func (sd *SettingsDialog) onBrowseDirectory() {
	dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil || uri == nil {
			return
		}
		sd.downloadDirEntry.SetText(uri.Path())
	}, sd.window)
}

func (sd *SettingsDialog) onSave(confirmed bool) {
	if !confirmed {
		return
	}

	night, err := sd.nightWindow()
	if err != nil {
		dialog.ShowError(err, sd.window)
		return
	}
	sd.settings.SetNightWindow(night)

	if dir := strings.TrimSpace(sd.downloadDirEntry.Text); dir != "" {
		sd.settings.SetDownloadDirectory(dir)
	}
	if v, err := strconv.Atoi(strings.TrimSpace(sd.maxParallelEntry.Text)); err == nil {
		sd.settings.SetMaxParallelDownloads(v)
	}
	if v, err := strconv.Atoi(strings.TrimSpace(sd.speedLimitEntry.Text)); err == nil {
		sd.settings.SetSpeedLimitKB(v)
	}
	if v, err := strconv.Atoi(strings.TrimSpace(sd.segmentWorkersEntry.Text)); err == nil {
		sd.settings.SetSegmentWorkers(v)
	}
	if p := strings.TrimSpace(sd.ffmpegEntry.Text); p != "" {
		sd.settings.SetFFmpegPath(p)
	}
	if p := strings.TrimSpace(sd.profilesEntry.Text); p != "" {
		sd.settings.SetProfilesPath(p)
	}
	sd.settings.SetInsecureTLS(sd.insecureCheck.Checked)
	sd.settings.SetAutoRevealOnComplete(sd.autoRevealCheck.Checked)
	if sd.languageSelect.Selected != "" {
		sd.settings.SetLanguage(sd.languageSelect.Selected)
	}

	if sd.onSaved != nil {
		sd.onSaved()
	}
	dialog.ShowInformation(sd.localization.GetText(KeySettings), sd.localization.GetText(KeySettingsSaved), sd.window)
}

// nightWindow validates the night mode inputs
func (sd *SettingsDialog) nightWindow() (model.NightWindow, error) {
	w := model.NightWindow{Enabled: sd.nightCheck.Checked}
	start, err := model.ParseClock(strings.TrimSpace(sd.nightStartEntry.Text))
	if err != nil {
		return w, err
	}
	end, err := model.ParseClock(strings.TrimSpace(sd.nightEndEntry.Text))
	if err != nil {
		return w, err
	}
	w.Start, w.End = start, end
	return w, nil
}
