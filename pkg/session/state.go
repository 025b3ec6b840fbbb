package session

import (
	"fmt"
	"strings"
)

type State uint8

const (
	StateIdle = State(iota)
	StateAdvertising
	StateConnected
	StateStreaming
)

func (this *State) Set(plain string) error {
	switch strings.TrimSpace(strings.ToLower(plain)) {
	case "idle":
		*this = StateIdle
		return nil
	case "advertising":
		*this = StateAdvertising
		return nil
	case "connected":
		*this = StateConnected
		return nil
	case "streaming":
		*this = StateStreaming
		return nil
	default:
		return fmt.Errorf("illegal-session-state: %s", plain)
	}
}

func (this State) String() string {
	v, err := this.MarshalText()
	if err != nil {
		return fmt.Sprintf("illegal-session-state-%d", this)
	}
	return string(v)
}

func (this State) MarshalText() (text []byte, err error) {
	switch this {
	case StateIdle:
		return []byte("idle"), nil
	case StateAdvertising:
		return []byte("advertising"), nil
	case StateConnected:
		return []byte("connected"), nil
	case StateStreaming:
		return []byte("streaming"), nil
	default:
		return nil, fmt.Errorf("illegal session state: %d", this)
	}
}

func (this *State) UnmarshalText(text []byte) error {
	return this.Set(string(text))
}
