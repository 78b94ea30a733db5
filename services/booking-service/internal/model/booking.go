package model

import (
	"crypto/rand"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusCancelled BookingStatus = "CANCELLED"
)

// Active statuses occupy capacity.
func (s BookingStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// CanTransition reports whether a booking may move from s to next.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCancelled
	}
	return false
}

func ParseBookingStatus(s string) (BookingStatus, error) {
	st := BookingStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown booking status %q", s)
}

// Requester is the party a booking is made for: a registered seeker or a guest identified
// by email. Exactly one is set.
type Requester struct {
	seekerID   string
	guestEmail string
}

// NewRequester validates that exactly one identity is provided.
func NewRequester(seekerID, guestEmail string) (Requester, error) {
	seekerID = strings.TrimSpace(seekerID)
	guestEmail = strings.TrimSpace(guestEmail)
	switch {
	case seekerID != "" && guestEmail != "":
		return Requester{}, NewValidationError("requester", "exactly one of seeker_id or guest_email is required")
	case seekerID != "":
		return Requester{seekerID: seekerID}, nil
	case guestEmail != "":
		addr, err := mail.ParseAddress(guestEmail)
		if err != nil || addr.Address != guestEmail {
			return Requester{}, NewValidationError("guest_email", "must be a plain email address")
		}
		return Requester{guestEmail: strings.ToLower(guestEmail)}, nil
	}
	return Requester{}, NewValidationError("requester", "exactly one of seeker_id or guest_email is required")
}

func (r Requester) SeekerID() string   { return r.seekerID }
func (r Requester) GuestEmail() string { return r.guestEmail }
func (r Requester) IsGuest() bool      { return r.guestEmail != "" }
func (r Requester) IsZero() bool       { return r.seekerID == "" && r.guestEmail == "" }

// Booking is a reservation of one staff member for one interval.
type Booking struct {
	ID              string
	TenantID        string
	ServiceID       string
	StaffID         string
	TimeSlotID      string
	Start           time.Time
	End             time.Time
	Requester       Requester
	Status          BookingStatus
	Notes           string
	SpecialRequests string
	ShortCode       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CancelledAt     *time.Time
	CancelReason    string
}

const shortCodeAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const ShortCodeLength = 8

// NewShortCode returns a random human-friendly reference (Crockford base32).
func NewShortCode() (string, error) {
	buf := make([]byte, ShortCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = shortCodeAlphabet[int(b)%len(shortCodeAlphabet)]
	}
	return string(buf), nil
}

// NormalizeShortCode upper-cases and maps the ambiguous letters Crockford allows on input.
func NormalizeShortCode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("O", "0", "I", "1", "L", "1", "-", "").Replace(s)
}
