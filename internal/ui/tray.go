// Package ui provides the system tray surface: a glanceable player status
// line and transport shortcuts for when the browser UI is closed.
package ui

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/cutroom/cutroom-agent/internal/player"
)

type Tray struct {
	player *player.Player
	logger *slog.Logger

	statusItem    *systray.MenuItem
	clipsItem     *systray.MenuItem
	playPauseItem *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	Player *player.Player
	Logger *slog.Logger
	OnQuit func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		player: cfg.Player,
		logger: cfg.Logger,
		onQuit: cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Cutroom")
	systray.SetTooltip("Cutroom Agent")

	t.statusItem = systray.AddMenuItem("Player: Idle", "Current player state")
	t.statusItem.Disable()

	t.clipsItem = systray.AddMenuItem("Clips: 0", "Clips in the sequence")
	t.clipsItem.Disable()

	systray.AddSeparator()

	t.playPauseItem = systray.AddMenuItem("Play", "Toggle playback")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Cutroom Agent")

	go func() {
		for {
			select {
			case <-t.playPauseItem.ClickedCh:
				t.togglePlayback()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePlayback() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.player == nil {
		return
	}

	if t.player.State() == player.StatePlaying {
		t.player.Pause()
		t.playPauseItem.SetTitle("Play")
	} else {
		t.player.Play()
		t.playPauseItem.SetTitle("Pause")
	}
}

// UpdateStatus refreshes the status line, e.g. "Player: Playing 00:12.50".
func (t *Tray) UpdateStatus(state, position string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.statusItem == nil {
		return
	}
	t.statusItem.SetTitle(fmt.Sprintf("Player: %s %s", state, position))

	if t.playPauseItem != nil {
		if t.player != nil && t.player.State() == player.StatePlaying {
			t.playPauseItem.SetTitle("Pause")
		} else {
			t.playPauseItem.SetTitle("Play")
		}
	}
}

func (t *Tray) UpdateClipCount(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.clipsItem != nil {
		t.clipsItem.SetTitle(fmt.Sprintf("Clips: %d", count))
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}
