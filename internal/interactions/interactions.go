// Package interactions stores the append-only log of likes, passes,
// superlikes and matches produced by users.
package interactions

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Type is the kind of reaction a user had to a target.
type Type string

const (
	Like      Type = "like"
	Pass      Type = "pass"
	Superlike Type = "superlike"
	Match     Type = "match"
)

// ParseType converts user input into a Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case Like, Pass, Superlike, Match:
		return t, nil
	default:
		return "", fmt.Errorf("unknown interaction type %q", s)
	}
}

// Positive reports whether the interaction expresses interest.
func (t Type) Positive() bool {
	return t == Like || t == Superlike
}

// Interaction is an immutable fact recorded once.
type Interaction struct {
	UserID    string    `json:"userId"`
	TargetID  string    `json:"targetId"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is the read/append contract of the interaction store.
type Log interface {
	Append(ctx context.Context, items ...Interaction) error
	// ListByUser returns the user's interactions, most recent first.
	ListByUser(ctx context.Context, userID string) ([]Interaction, error)
	// LatestDecision returns the last like, superlike or pass userID gave
	// targetID. ok is false when there is none.
	LatestDecision(ctx context.Context, userID, targetID string) (t Type, ok bool, err error)
	// HasMatch reports whether a match fact already links userID to targetID.
	HasMatch(ctx context.Context, userID, targetID string) (bool, error)
}
