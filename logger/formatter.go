package logger

import (
	"bytes"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	resetColorCode        = 0
	defaultFieldSeparator = " | "
	defaultTimestampFormat = time.RFC3339
)

// Formatter implements logrus.Formatter. Fields are printed as
// "[key:value | key:value]" before the message, known keys first.
type Formatter struct {
	TimestampFormat  string
	NoColors         bool
	DisableTimestamp bool
	DisplayLevelName LevelNameDisplayMode
	// ShowFullLevel prints "WARNING" instead of "WARN".
	ShowFullLevel bool
	HideKeys      bool
	// FieldsDisplayWithOrder lists keys printed first, in this order. Other
	// keys follow alphabetically.
	FieldsDisplayWithOrder []string
	FieldSeparator         string
	DisableCaller          bool
	CustomCallerFormatter  func(*runtime.Frame) string
	// MaxFieldValueLength truncates long values. 0 disables truncation.
	MaxFieldValueLength int
}

// LevelNameDisplayMode defines which levels get a "[LEVEL]" tag.
type LevelNameDisplayMode int

const (
	ShowAll LevelNameDisplayMode = iota
	ShowAboveWarn
	ShowAboveError
	HideAll
)

func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	if !f.DisableTimestamp {
		format := f.TimestampFormat
		if format == "" {
			format = defaultTimestampFormat
		}
		b.WriteString(entry.Time.Format(format))
		b.WriteByte(' ')
	}

	if f.showLevel(entry.Level) {
		f.writeLevel(b, entry.Level)
	}

	if len(entry.Data) > 0 {
		separator := f.FieldSeparator
		if separator == "" {
			separator = defaultFieldSeparator
		}
		b.WriteByte('[')
		for i, key := range f.orderedKeys(entry.Data) {
			if i > 0 {
				b.WriteString(separator)
			}
			f.writeKeyValue(b, key, entry.Data[key])
		}
		b.WriteString("] ")
	}

	b.WriteString(entry.Message)

	if !f.DisableCaller && entry.HasCaller() {
		b.WriteByte(' ')
		f.writeCaller(b, entry.Caller)
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func (f *Formatter) showLevel(level logrus.Level) bool {
	switch f.DisplayLevelName {
	case ShowAll:
		return true
	case ShowAboveWarn:
		return level <= logrus.WarnLevel
	case ShowAboveError:
		return level <= logrus.ErrorLevel
	default:
		return false
	}
}

func (f *Formatter) writeLevel(b *bytes.Buffer, level logrus.Level) {
	name := level.String()
	if !f.ShowFullLevel && len(name) > 4 {
		name = name[:4]
	}
	name = strings.ToUpper(name)
	if f.NoColors {
		fmt.Fprintf(b, "[%s] ", name)
		return
	}
	fmt.Fprintf(b, "\x1b[%dm[%s]\x1b[%dm ", colorByLevel(level), name, resetColorCode)
}

func (f *Formatter) orderedKeys(data logrus.Fields) []string {
	keys := make([]string, 0, len(data))
	seen := make(map[string]bool, len(f.FieldsDisplayWithOrder))
	for _, key := range f.FieldsDisplayWithOrder {
		if _, ok := data[key]; ok {
			keys = append(keys, key)
			seen[key] = true
		}
	}
	rest := make([]string, 0, len(data)-len(keys))
	for key := range data {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func (f *Formatter) writeKeyValue(b *bytes.Buffer, key string, value interface{}) {
	valStr := fmt.Sprintf("%v", value)
	if f.MaxFieldValueLength > 0 && len(valStr) > f.MaxFieldValueLength {
		valStr = valStr[:f.MaxFieldValueLength] + "..."
	}
	if f.HideKeys {
		b.WriteString(valStr)
		return
	}
	b.WriteString(key)
	b.WriteByte(':')
	b.WriteString(valStr)
}

func (f *Formatter) writeCaller(b *bytes.Buffer, frame *runtime.Frame) {
	if f.CustomCallerFormatter != nil {
		b.WriteString(f.CustomCallerFormatter(frame))
		return
	}
	fn := filepath.Base(frame.Function)
	if idx := strings.LastIndex(fn, "."); idx >= 0 {
		fn = fn[idx+1:]
	}
	fmt.Fprintf(b, "(%s:%d %s)", filepath.Base(frame.File), frame.Line, fn)
}

func colorByLevel(level logrus.Level) int {
	switch level {
	case logrus.DebugLevel:
		return colorBlue
	case logrus.WarnLevel:
		return colorYellow
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return colorRed
	default:
		return colorGray
	}
}

const (
	colorRed    = 31
	colorYellow = 33
	colorBlue   = 36
	colorGray   = 37
)
