package main

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	log "github.com/sirupsen/logrus"

	"github.com/ytget/nexus-downloader/internal/config"
	"github.com/ytget/nexus-downloader/internal/engine"
	"github.com/ytget/nexus-downloader/internal/ui"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

const (
	AppID   = "com.ytget.nexus-downloader"
	AppName = "Nexus Downloader"

	WindowWidth  = 900
	WindowHeight = 640
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.WithField("version", version).Info("Nexus Downloader starting")

	myApp := app.NewWithID(AppID)
	myApp.Settings().SetTheme(ui.NewCompactTheme())

	myWindow := myApp.NewWindow(AppName + " v" + version)
	myWindow.Resize(fyne.NewSize(WindowWidth, WindowHeight))

	settings := config.NewSettings(myApp)
	eng, err := engine.New(engine.FromSettings(settings))
	if err != nil {
		log.WithError(err).Fatal("cannot start download engine")
	}

	ui.NewRootUI(myWindow, eng.Service, settings, func() {
		eng.Service.ApplySettings(settings)
	})

	myWindow.SetOnClosed(eng.Close)
	myWindow.ShowAndRun()
}
