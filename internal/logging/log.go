package logging

import (
	"fmt"
	"log"
	"os"
)

// LogLevel 日志级别
type LogLevel int

const (
	// DEBUG 调试级别
	DEBUG LogLevel = iota
	// INFO 信息级别
	INFO
	// WARN 警告级别
	WARN
	// ERROR 错误级别
	ERROR
	// FATAL 致命级别
	FATAL
)

// Logger 日志记录器
type Logger struct {
	debugLogger *log.Logger
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	fatalLogger *log.Logger
	level       LogLevel
}

// Config 日志配置
type Config struct {
	Level  string
	Output string
}

// DefaultLogger 默认日志记录器
var DefaultLogger = NewLogger(Config{Level: "info", Output: "stdout"})

// NewLogger 创建新的日志记录器
func NewLogger(config Config) *Logger {
	// 设置日志级别
	level := INFO
	switch config.Level {
	case "debug":
		level = DEBUG
	case "info":
		level = INFO
	case "warn":
		level = WARN
	case "error":
		level = ERROR
	case "fatal":
		level = FATAL
	}

	// 设置输出
	var output *os.File
	if config.Output == "stdout" || config.Output == "" {
		output = os.Stdout
	} else {
		var err error
		output, err = os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("Failed to open log file: %v, using stdout instead\n", err)
			output = os.Stdout
		}
	}

	// 创建基本日志记录器
	flags := log.Ldate | log.Ltime | log.Lmicroseconds
	return &Logger{
		debugLogger: log.New(output, "[DEBUG] ", flags),
		infoLogger:  log.New(output, "[INFO]  ", flags),
		warnLogger:  log.New(output, "[WARN]  ", flags),
		errorLogger: log.New(output, "[ERROR] ", flags),
		fatalLogger: log.New(output, "[FATAL] ", flags),
		level:       level,
	}
}

// Debug 记录调试日志
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.level <= DEBUG {
		l.debugLogger.Printf(format, v...)
	}
}

// Info 记录信息日志
func (l *Logger) Info(format string, v ...interface{}) {
	if l.level <= INFO {
		l.infoLogger.Printf(format, v...)
	}
}

// Warn 记录警告日志
func (l *Logger) Warn(format string, v ...interface{}) {
	if l.level <= WARN {
		l.warnLogger.Printf(format, v...)
	}
}

// Error 记录错误日志
func (l *Logger) Error(format string, v ...interface{}) {
	if l.level <= ERROR {
		l.errorLogger.Printf(format, v...)
	}
}

// Fatal 记录致命日志并退出程序
func (l *Logger) Fatal(format string, v ...interface{}) {
	if l.level <= FATAL {
		l.fatalLogger.Printf(format, v...)
		os.Exit(1)
	}
}
