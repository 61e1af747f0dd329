package model

import "encoding/json"

type SessionState int

const (
	Idle SessionState = iota
	Running
	StoppingRequested
	Stopped
)

func (s SessionState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case StoppingRequested:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

func (s SessionState) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }
