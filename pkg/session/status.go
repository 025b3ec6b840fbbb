package session

import (
	"github.com/google/uuid"
)

const (
	TextStreaming        = "streaming"
	TextWaitingForParent = "waiting for parent"
	TextParentConnected  = "parent connected"
	TextStopped          = "stopped"
	TextWifiNotConnected = "wifi not connected"
)

// Token identifies one activation, from Start to Stop.
type Token uuid.UUID

func NewToken() Token {
	return Token(uuid.New())
}

func (this Token) String() string {
	return uuid.UUID(this).String()
}

// Status is what the user gets to see about the session.
type Status struct {
	State       State  `json:"state"`
	ServiceName string `json:"serviceName,omitempty"`
	Port        int    `json:"port,omitempty"`
	Address     string `json:"address,omitempty"`
	Activation  string `json:"activation,omitempty"`
}

func (this Status) Text() string {
	switch this.State {
	case StateStreaming:
		return TextStreaming
	case StateConnected:
		return TextParentConnected
	case StateAdvertising:
		return TextWaitingForParent
	default:
		return TextStopped
	}
}

func (this Status) AddressText() string {
	if this.Address == "" {
		return TextWifiNotConnected
	}
	return this.Address
}
