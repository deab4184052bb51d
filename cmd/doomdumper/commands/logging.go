package commands

import (
	"log/slog"

	"github.com/juju/lumberjack/v2"
	"github.com/sirupsen/logrus"

	"github.com/doomdumper/doomdumper/internal/config"
	appfsm "github.com/doomdumper/doomdumper/pkg/fsm"
)

var (
	logFile *lumberjack.Logger
	// journalLog receives the FSM manager's records; nil discards them.
	journalLog logrus.FieldLogger
)

// setupLogging sends slog output, and the FSM journal's own logging, to a
// rotating file. The console belongs to the interactive session.
func setupLogging(c *config.Config) error {
	lvl, err := c.Level()
	if err != nil {
		return err
	}

	logFile = &lumberjack.Logger{
		Filename:   c.LogFile,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: lvl})))
	journalLog = appfsm.NewLogger(logFile, lvl)
	return nil
}

func closeLogging() {
	if logFile != nil {
		logFile.Close()
	}
}
