package logger

import "context"

var noop Logger = noopLogger{}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any)                 {}
func (noopLogger) Info(string, ...any)                  {}
func (noopLogger) Warn(string, ...any)                  {}
func (noopLogger) Error(string, ...any)                 {}
func (n noopLogger) With(...any) Logger                 { return n }
func (n noopLogger) WithContext(context.Context) Logger { return n }
