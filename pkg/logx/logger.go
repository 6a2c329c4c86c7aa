package logx

import (
	"io"
	"os"
	"path"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultLogDir and DefaultLogFile are used when file logging is enabled
// without an explicit destination. The log directory is shared with the
// hash cache and audit files, so one directory holds a run's full trail.
const (
	DefaultLogDir  = "logs"
	DefaultLogFile = "mba-ingest.log"
)

var logger zerolog.Logger
var startTime time.Time
var pid = os.Getpid()

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	// Level is the log level to use (e.g., "Info", "Debug").
	Level string
	// ConsoleLogging enables logging to the console.
	ConsoleLogging bool
	// FileLogging enables logging to a file.
	FileLogging bool
	// Directory specifies the directory for log files (used if FileLogging is enabled).
	Directory string
	// Filename is the name of the log file.
	Filename string
	// MaxSize is the maximum size (in MB) of a log file before it is rolled.
	MaxSize int
	// MaxBackups is the maximum number of rolled log files to keep.
	MaxBackups int
	// MaxAge is the maximum age (in days) to keep a log file.
	MaxAge int
	// Compress enables compression of rolled log files.
	Compress bool
}

func Initialize(c *LoggingConfig) error {
	return InitializeWithOptions(c)
}

func newRollingFile(cfg *LoggingConfig) (io.Writer, error) {
	dir := cfg.Directory
	if dir == "" {
		dir = DefaultLogDir
	}
	filename := cfg.Filename
	if filename == "" {
		filename = DefaultLogFile
	}

	return &lumberjack.Logger{
		Filename:   path.Join(dir, filename),
		MaxBackups: cfg.MaxBackups, // files
		MaxSize:    cfg.MaxSize,    // megabytes
		MaxAge:     cfg.MaxAge,     // days
		Compress:   cfg.Compress,
	}, nil
}

func InitializeWithOptions(cfg *LoggingConfig) error {
	l, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(l)
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	console := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	var writers []io.Writer
	if cfg.FileLogging {
		logFile, err := newRollingFile(cfg)
		if err != nil {
			return err
		}

		fileWriter := zerolog.New(logFile).With().Timestamp().Logger()
		writers = append(writers, console, fileWriter)
	} else {
		writers = append(writers, console)
	}

	mw := zerolog.MultiLevelWriter(writers...)
	logger = zerolog.New(mw).With().
		Timestamp().
		Int("pid", pid).
		Logger()

	return nil
}

func As() *zerolog.Logger {
	return &logger
}

func StartTimer() {
	startTime = time.Now()
}

func ExecutionTime() string {
	return time.Since(startTime).Round(time.Second).String()
}

func GetPid() int {
	return pid
}
