package jsonlog

import (
	"encoding/json"
	"io"
	"log"
	"time"
)

type Logger struct {
	base   *log.Logger
	fields map[string]any
}

func New(w io.Writer) *Logger {
	return &Logger{base: log.New(w, "", 0)} // sem prefixo; o JSON é montado aqui
}

// Discard é usado em testes e quando nenhum logger é injetado.
func Discard() *Logger {
	return New(io.Discard)
}

// With devolve um logger que inclui fields em toda linha.
func (l *Logger) With(fields map[string]any) *Logger {
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{base: l.base, fields: merged}
}

func (l *Logger) Info(msg string, fields map[string]any) {
	l.emit("INFO", msg, fields)
}

func (l *Logger) Warn(msg string, fields map[string]any) {
	l.emit("WARN", msg, fields)
}

func (l *Logger) Error(msg string, fields map[string]any) {
	l.emit("ERROR", msg, fields)
}

func (l *Logger) emit(level, msg string, fields map[string]any) {
	m := make(map[string]any, 3+len(l.fields)+len(fields))
	for k, v := range l.fields {
		m[k] = v
	}
	for k, v := range fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		m[k] = v
	}
	m["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	m["level"] = level
	m["msg"] = msg
	b, _ := json.Marshal(m)
	l.base.Print(string(b))
}
