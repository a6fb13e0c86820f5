package gateway

import (
	"errors"
	"fmt"
	"time"
)

// UserID uniquely identifies a viewer session.
type UserID string

// VideoID uniquely identifies a catalog entry.
type VideoID string

// Video is a catalog entry and its bitrate ladder in kbps.
type Video struct {
	ID       VideoID `json:"id" yaml:"id"`
	Bitrates []int   `json:"bitrates" yaml:"bitrates"`
}

// Validate reports whether v can be served: a non-empty id and at least one
// positive bitrate.
func (v Video) Validate() error {
	if v.ID == "" {
		return errors.New("video id is empty")
	}
	if len(v.Bitrates) == 0 {
		return fmt.Errorf("video %q: bitrate ladder is empty", v.ID)
	}
	for _, b := range v.Bitrates {
		if b <= 0 {
			return fmt.Errorf("video %q: bitrate must be positive, got %d", v.ID, b)
		}
	}
	return nil
}

// Nearest returns the highest rung of the ladder not above bitrate, or the
// lowest rung when every rung is above it.
func (v Video) Nearest(bitrate int) int {
	best, lowest := 0, 0
	for _, b := range v.Bitrates {
		if lowest == 0 || b < lowest {
			lowest = b
		}
		if b <= bitrate && b > best {
			best = b
		}
	}
	if best == 0 {
		return lowest
	}
	return best
}

func (v Video) clone() Video {
	return Video{ID: v.ID, Bitrates: append([]int(nil), v.Bitrates...)}
}

// UserSession is the playback state tracked for one user.
// Bitrate 0 means no stream has been selected yet.
type UserSession struct {
	UserID    UserID    `json:"user_id"`
	Bitrate   int       `json:"bitrate"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// StreamResult is the admission decision for a stream request.
type StreamResult struct {
	VideoID VideoID `json:"video_id"`
	UserID  UserID  `json:"user_id"`
	Bitrate int     `json:"bitrate"`
}
