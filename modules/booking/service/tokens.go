package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ActionTokenIssuer signs the approve/decline links mailed to approvers.
// External approvers act through these tokens without an authenticated
// session.
type ActionTokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewActionTokenIssuer(secret string, ttl time.Duration) *ActionTokenIssuer {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &ActionTokenIssuer{secret: []byte(secret), ttl: ttl}
}

type actionClaims struct {
	BookingID string `json:"booking_id"`
	StepID    string `json:"step_id"`
	Approver  string `json:"approver"`
	jwt.RegisteredClaims
}

func (i *ActionTokenIssuer) Issue(bookingID uuid.UUID, stepID, approver string) (string, error) {
	now := time.Now()
	claims := actionClaims{
		BookingID: bookingID.String(),
		StepID:    stepID,
		Approver:  approver,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "booking_approval",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Parse validates the token and returns the booking it authorizes a decision
// on, along with the approval step and approver identity it was issued for.
func (i *ActionTokenIssuer) Parse(token string) (bookingID uuid.UUID, stepID, approver string, err error) {
	var claims actionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return uuid.Nil, "", "", err
	}
	if !parsed.Valid || claims.Subject != "booking_approval" {
		return uuid.Nil, "", "", fmt.Errorf("invalid approval token")
	}
	id, err := uuid.Parse(claims.BookingID)
	if err != nil {
		return uuid.Nil, "", "", fmt.Errorf("invalid booking id in token: %w", err)
	}
	return id, claims.StepID, claims.Approver, nil
}
