package tui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/bnema/pgman/internal/config"
)

// Run starts the full-screen browser and blocks until the user quits.
// Downloads land in a temporary directory removed on exit.
func Run(store *config.Store) error {
	downloadDir, err := os.MkdirTemp("", "pgman-backup-")
	if err != nil {
		return fmt.Errorf("could not create download directory: %w", err)
	}
	defer os.RemoveAll(downloadDir)

	model := NewModel(store, NewBackend(store), downloadDir)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running browser: %w", err)
	}
	log.Debug("browser exited", "download_dir", downloadDir)
	return nil
}
