package store

import (
	"strings"
	"time"
)

const (
	historyKey = "history"
	MaxHistory = 1000
)

type Kind string

const (
	KindSearch Kind = "search"
	KindJump   Kind = "jump"
	KindPrompt Kind = "ai"
)

type Entry struct {
	Kind Kind      `json:"kind"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// History keeps the most recent commands across kinds, oldest first.
type History struct {
	s   *Store
	now func() time.Time
}

func (s *Store) History() *History { return &History{s: s, now: time.Now} }

// Add appends text. Repeating the latest entry of the same kind moves it to
// the end instead of duplicating it.
func (h *History) Add(kind Kind, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var all []Entry
	return h.s.Update(historyKey, &all, func() error {
		for i := len(all) - 1; i >= 0; i-- {
			if all[i].Kind == kind {
				if all[i].Text == text {
					all = append(all[:i], all[i+1:]...)
				}
				break
			}
		}
		all = append(all, Entry{Kind: kind, Text: text, At: h.now().UTC()})
		if len(all) > MaxHistory {
			all = all[len(all)-MaxHistory:]
		}
		return nil
	})
}

// List returns entries of kind, oldest first. An empty kind lists all.
func (h *History) List(kind Kind) ([]Entry, error) {
	var all []Entry
	if _, err := h.s.Load(historyKey, &all); err != nil {
		return nil, err
	}
	if kind == "" {
		return all, nil
	}
	out := all[:0]
	for _, e := range all {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out, nil
}
