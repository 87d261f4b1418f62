package ui

import (
	"sort"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/ytget/nexus-downloader/internal/model"
)

// allGroups is the group selector entry that disables group filtering
const allGroups = "*"

// filterChannels returns entries of group (or all groups) whose name contains query
func filterChannels(channels []model.ChannelEntry, group, query string) []model.ChannelEntry {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]model.ChannelEntry, 0, len(channels))
	for _, ch := range channels {
		if group != "" && group != allGroups && ch.Group != group {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(ch.Name), query) {
			continue
		}
		out = append(out, ch)
	}
	return out
}

// channelGroups returns the sorted distinct groups, led by allGroups
func channelGroups(channels []model.ChannelEntry) []string {
	seen := make(map[string]struct{})
	groups := make([]string, 0)
	for _, ch := range channels {
		if _, ok := seen[ch.Group]; ok {
			continue
		}
		seen[ch.Group] = struct{}{}
		groups = append(groups, ch.Group)
	}
	sort.Strings(groups)
	return append([]string{allGroups}, groups...)
}

// ChannelsView lists the channels of a completed catalog import
type ChannelsView struct {
	localization *Localization
	channels     []model.ChannelEntry
	visible      []model.ChannelEntry
	group        string
	query        string

	list        *widget.List
	searchEntry *widget.Entry
	groupSelect *widget.Select

	onDownload func(model.ChannelEntry)
}

// NewChannelsView creates a view over channels; onDownload receives the picked entry
func NewChannelsView(channels []model.ChannelEntry, localization *Localization, onDownload func(model.ChannelEntry)) *ChannelsView {
	cv := &ChannelsView{
		localization: localization,
		channels:     channels,
		group:        allGroups,
		onDownload:   onDownload,
	}
	cv.createUI()
	cv.applyFilter()
	return cv
}

func (cv *ChannelsView) createUI() {
	cv.list = widget.NewList(
		func() int { return len(cv.visible) },
		func() fyne.CanvasObject {
			name := widget.NewLabel("")
			name.Truncation = fyne.TextTruncateEllipsis
			group := widget.NewLabel("")
			group.TextStyle = fyne.TextStyle{Italic: true}
			btn := widget.NewButton(cv.localization.GetText(KeyDownloadChannel), nil)
			return container.NewBorder(nil, nil, nil, container.NewHBox(group, btn), name)
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id < 0 || id >= len(cv.visible) {
				return
			}
			ch := cv.visible[id]
			row := obj.(*fyne.Container)
			row.Objects[0].(*widget.Label).SetText(cleanText(ch.Name))
			right := row.Objects[1].(*fyne.Container)
			right.Objects[0].(*widget.Label).SetText(ch.Group)
			right.Objects[1].(*widget.Button).OnTapped = func() {
				if cv.onDownload != nil {
					cv.onDownload(ch)
				}
			}
		},
	)

	cv.searchEntry = widget.NewEntry()
	cv.searchEntry.SetPlaceHolder("🔍")
	cv.searchEntry.OnChanged = func(q string) {
		cv.query = q
		cv.applyFilter()
	}

	cv.groupSelect = widget.NewSelect(channelGroups(cv.channels), func(g string) {
		cv.group = g
		cv.applyFilter()
	})
	cv.groupSelect.Selected = allGroups
}

func (cv *ChannelsView) applyFilter() {
	cv.visible = filterChannels(cv.channels, cv.group, cv.query)
	cv.list.Refresh()
}

// Content returns the view layout
func (cv *ChannelsView) Content() fyne.CanvasObject {
	if len(cv.channels) == 0 {
		return widget.NewLabel(cv.localization.GetText(KeyNoChannels))
	}
	top := container.NewBorder(nil, nil, nil, cv.groupSelect, cv.searchEntry)
	return container.NewBorder(top, nil, nil, nil, cv.list)
}

// ShowChannelsDialog opens the channel list of a catalog task
func ShowChannelsDialog(task model.DownloadTask, localization *Localization, window fyne.Window, onDownload func(model.ChannelEntry)) {
	view := NewChannelsView(task.Channels, localization, onDownload)
	d := dialog.NewCustom(
		localization.GetText(KeyChannels)+MiddleDotSeparator+cleanText(task.Source),
		localization.GetText(KeyClose),
		view.Content(),
		window,
	)
	d.Resize(fyne.NewSize(ChannelsDialogWidth, ChannelsDialogHeight))
	d.Show()
}
