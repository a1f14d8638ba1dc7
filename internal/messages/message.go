package messages

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func NewMessage(level LogLevel, component string, err error, formatString string, additionalInfo ...interface{}) *Message {
	return &Message{
		LogLevel:       level,
		Component:      component,
		Error:          err,
		FormatString:   formatString,
		AdditionalInfo: additionalInfo,
	}
}

// ConsoleLog writes the message to the package logger. Errors are logged
// with their component and cause; the caller decides whether to go on.
func (msg *Message) ConsoleLog() {
	log := Logger()
	text := msg.Text()
	fields := []zap.Field{}
	if msg.Component != "" {
		fields = append(fields, zap.String("component", msg.Component))
	}

	switch msg.LogLevel {
	case LOG_LEVEL_INFO:
		log.Info(text, fields...)
	case LOG_LEVEL_SUCCESS:
		log.Info(text, append(fields, zap.Bool("success", true))...)
	case LOG_LEVEL_WARNING:
		if msg.Error != nil {
			fields = append(fields, zap.Error(msg.Error))
		}
		log.Warn(text, fields...)
	case LOG_LEVEL_ERROR:
		log.Error(text, append(fields, zap.Error(msg.Error))...)
	default:
		log.Debug(text, fields...)
	}
}

// Text formats the message without its error
func (msg *Message) Text() string {
	return fmt.Sprintf(msg.FormatString, msg.AdditionalInfo...)
}

// Err returns the message's error annotated with its text, nil when the
// message carries no error
func (msg *Message) Err() error {
	if msg.Error == nil {
		return nil
	}
	return errors.Wrap(msg.Error, msg.Text())
}
