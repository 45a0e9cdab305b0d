package eventbus

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const EnvelopeVersion = "v1"

// Kind separates facts (events) from requests for work (commands).
type Kind string

const (
	KindEvent   Kind = "event"
	KindCommand Kind = "command"
)

// Envelope is the JSON body of every message put on the bus.
type Envelope struct {
	EventID   string          `json:"event_id"`
	Event     string          `json:"event"`
	EventTime time.Time       `json:"event_time"`
	Version   string          `json:"version"`
	Data      json.RawMessage `json:"data"`
	Metadata  Metadata        `json:"metadata"`
}

type Metadata struct {
	Producer    string `json:"producer"`
	Environment string `json:"environment"`
}

// Topic builds "{environment}.{domain}.{kind}.{verb}" in upper case.
func Topic(environment, domain string, kind Kind, verb string) string {
	return strings.ToUpper(fmt.Sprintf("%s.%s.%s.%s",
		strings.TrimSpace(environment),
		strings.TrimSpace(domain),
		kind,
		strings.TrimSpace(verb),
	))
}
