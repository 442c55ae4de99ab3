package live

import (
	"fmt"
	"time"
)

// Window is one trading session as local HH:MM bounds. End before start
// means the session runs past midnight.
type Window struct {
	Name  string `yaml:"name" json:"name"`
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

type session struct {
	name       string
	start, end time.Duration
}

func (s session) contains(offset time.Duration) bool {
	if s.start <= s.end {
		return offset >= s.start && offset <= s.end
	}
	return offset >= s.start || offset <= s.end
}

// Sessions gates live monitoring to trading hours
type Sessions struct {
	sessions []session
	loc      *time.Location
}

// NewSessions parses windows in loc; nil loc means UTC
func NewSessions(windows []Window, loc *time.Location) (*Sessions, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &Sessions{loc: loc}
	for i, w := range windows {
		start, err := parseClock(w.Start)
		if err != nil {
			return nil, fmt.Errorf("session %d (%s) start: %w", i, w.Name, err)
		}
		end, err := parseClock(w.End)
		if err != nil {
			return nil, fmt.Errorf("session %d (%s) end: %w", i, w.Name, err)
		}
		s.sessions = append(s.sessions, session{name: w.Name, start: start, end: end})
	}
	return s, nil
}

// Open reports whether t falls in any session. No sessions means always open.
func (s *Sessions) Open(t time.Time) bool {
	if s == nil || len(s.sessions) == 0 {
		return true
	}
	return len(s.Active(t)) > 0
}

// Active names the sessions containing t
func (s *Sessions) Active(t time.Time) []string {
	if s == nil {
		return nil
	}
	local := t.In(s.loc)
	offset := time.Duration(local.Hour())*time.Hour + time.Duration(local.Minute())*time.Minute

	var names []string
	for _, sess := range s.sessions {
		if sess.contains(offset) {
			names = append(names, sess.name)
		}
	}
	return names
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid HH:MM %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
