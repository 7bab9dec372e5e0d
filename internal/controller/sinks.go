package controller

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LogSink publishes by logging, for dry runs without a downstream consumer.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) PublishState(topic string, st JointState) error {
	s.Logger.Debug("joint state",
		zap.String("topic", topic),
		zap.Time("stamp", st.Stamp),
		zap.Strings("name", st.Name),
		zap.Float64s("position", st.Position))
	return nil
}

func (s LogSink) PublishCommand(topic string, cmd JointGroupCommand) error {
	s.Logger.Debug("joint group command",
		zap.String("topic", topic),
		zap.String("name", cmd.Name),
		zap.Float64s("cmd", cmd.Cmd[:]))
	return nil
}

// JSONSink writes each state and command as one JSON line.
type JSONSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

type jsonRecord struct {
	Topic    string     `json:"topic"`
	Stamp    *time.Time `json:"stamp,omitempty"`
	Name     any        `json:"name"`
	Position []float64  `json:"position,omitempty"`
	Cmd      []float64  `json:"cmd,omitempty"`
}

func (s *JSONSink) write(r jsonRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(r)
}

func (s *JSONSink) PublishState(topic string, st JointState) error {
	return s.write(jsonRecord{Topic: topic, Stamp: &st.Stamp, Name: st.Name, Position: st.Position})
}

func (s *JSONSink) PublishCommand(topic string, cmd JointGroupCommand) error {
	return s.write(jsonRecord{Topic: topic, Name: cmd.Name, Cmd: cmd.Cmd[:]})
}
