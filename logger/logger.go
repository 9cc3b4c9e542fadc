package logger

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/pkg/errors"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmupgrade/common"
)

// Log is the global logger instance of XMLog. It starts as a quiet console
// logger and is replaced by InitGlobalLogger once flags are parsed.
var Log *XMLog

func init() {
	Log, _ = New(Options{})
}

// XMLog wraps logrus.Logger with run-aware helpers.
type XMLog struct {
	*logrus.Logger
}

// Options controls where and how much the logger writes.
type Options struct {
	// OutputDir enables a daily rotated log file in this directory.
	OutputDir string
	Verbose   bool
	// Level is used when Verbose is false. Zero value means warn.
	Level logrus.Level
	// Console receives human oriented output. Defaults to os.Stderr so that
	// child process output on stdout stays clean.
	Console io.Writer
}

var fieldOrder = []string{common.RunID, common.Phase, common.StepName, common.HostName}

// InitGlobalLogger replaces the global Log.
func InitGlobalLogger(opts Options) error {
	l, err := New(opts)
	if err != nil {
		return err
	}
	Log = l
	return nil
}

// New builds a logger with a console formatter and an optional file hook.
func New(opts Options) (*XMLog, error) {
	logger := logrus.New()

	level := opts.Level
	if level == logrus.PanicLevel {
		level = logrus.WarnLevel
	}
	displayLevel := ShowAboveWarn
	if opts.Verbose {
		level = logrus.DebugLevel
		displayLevel = ShowAll
	}
	logger.SetLevel(level)

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	logger.SetOutput(console)
	logger.SetFormatter(&Formatter{
		TimestampFormat:        "15:04:05",
		DisplayLevelName:       displayLevel,
		DisableCaller:          true,
		FieldsDisplayWithOrder: fieldOrder,
	})

	if opts.OutputDir != "" {
		hook, err := fileHook(opts.OutputDir)
		if err != nil {
			return nil, err
		}
		logger.SetReportCaller(true)
		logger.Hooks.Add(hook)
	}
	return &XMLog{Logger: logger}, nil
}

func fileHook(dir string) (logrus.Hook, error) {
	if err := os.MkdirAll(dir, common.FileMode0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create log directory %s", dir)
	}
	logFilePath := filepath.Join(dir, common.AppName+".log")

	writer, err := rotatelogs.New(
		logFilePath+".%Y%m%d",
		rotatelogs.WithLinkName(logFilePath),
		rotatelogs.WithMaxAge(7*24*time.Hour),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to initialize rotatelogs for %s", logFilePath)
	}

	fileFormatter := &Formatter{
		TimestampFormat:        "2006-01-02 15:04:05.000 MST",
		NoColors:               true,
		DisplayLevelName:       ShowAll,
		FieldsDisplayWithOrder: fieldOrder,
		CustomCallerFormatter: func(frame *runtime.Frame) string {
			return "(" + filepath.Base(frame.File) + ")"
		},
	}

	writers := lfshook.WriterMap{}
	for _, level := range logrus.AllLevels {
		writers[level] = writer
	}
	return lfshook.NewHook(writers, fileFormatter), nil
}

// Run returns an entry tagged with the run id.
func (xl *XMLog) Run(runID string) *logrus.Entry {
	return xl.WithField(common.RunID, shortID(runID))
}

// Host returns an entry tagged with a remote host.
func (xl *XMLog) Host(runID, host string) *logrus.Entry {
	return xl.Run(runID).WithFields(logrus.Fields{common.Phase: common.PhaseRemote, common.HostName: host})
}

func (xl *XMLog) DebugfHost(host string, format string, args ...interface{}) {
	xl.WithField(common.HostName, host).Debugf(format, args...)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
