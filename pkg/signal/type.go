package signal

import (
	"fmt"
	"strings"
)

type Type uint8

const (
	TypeLog = Type(0)
	TypeWeb = Type(1)

	TypeDefault = TypeLog
)

var (
	AllTypes = Types{
		TypeLog,
		TypeWeb,
	}
)

func (this *Type) Set(plain string) error {
	switch strings.TrimSpace(strings.ToLower(plain)) {
	case "log":
		*this = TypeLog
		return nil
	case "web", "http":
		*this = TypeWeb
		return nil
	default:
		return fmt.Errorf("illegal-signal-type: %s", plain)
	}
}

func (this Type) String() string {
	v, err := this.MarshalText()
	if err != nil {
		return fmt.Sprintf("illegal-signal-type-%d", this)
	}
	return string(v)
}

func (this Type) MarshalText() (text []byte, err error) {
	switch this {
	case TypeLog:
		return []byte("log"), nil
	case TypeWeb:
		return []byte("web"), nil
	default:
		return nil, fmt.Errorf("illegal signal type: %d", this)
	}
}

func (this *Type) UnmarshalText(text []byte) error {
	return this.Set(string(text))
}

type Types []Type

// Set accepts a comma separated list. Duplicates are ignored.
func (this *Types) Set(plain string) error {
	var result Types
	for _, part := range strings.Split(plain, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		var t Type
		if err := t.Set(part); err != nil {
			return err
		}
		if !result.Contains(t) {
			result = append(result, t)
		}
	}
	*this = result
	return nil
}

func (this Types) Contains(t Type) bool {
	for _, candidate := range this {
		if candidate == t {
			return true
		}
	}
	return false
}

func (this Types) Strings() []string {
	result := make([]string, len(this))
	for i, v := range this {
		result[i] = v.String()
	}
	return result
}

func (this Types) String() string {
	return strings.Join(this.Strings(), ",")
}
