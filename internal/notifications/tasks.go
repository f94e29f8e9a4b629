package notifications

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const TaskSignupConfirmation = "email:signup_confirmation"

var ErrInvalidTaskPayload = errors.New("invalid task payload")

type signupConfirmationPayload struct {
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Token      string    `json:"token"`
	ConfirmURL string    `json:"confirmUrl"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

func EncodeSignupConfirmation(in SignupConfirmationInput) ([]byte, error) {
	if in.Email == "" || in.Token == "" {
		return nil, fmt.Errorf("%w: email and token are required", ErrInvalidTaskPayload)
	}

	b, err := json.Marshal(signupConfirmationPayload(in))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTaskPayload, err)
	}
	return b, nil
}

func DecodeSignupConfirmation(b []byte) (SignupConfirmationInput, error) {
	if len(b) == 0 {
		return SignupConfirmationInput{}, ErrInvalidTaskPayload
	}

	var p signupConfirmationPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return SignupConfirmationInput{}, fmt.Errorf("%w: %v", ErrInvalidTaskPayload, err)
	}
	if p.Email == "" || p.Token == "" {
		return SignupConfirmationInput{}, fmt.Errorf("%w: email and token are required", ErrInvalidTaskPayload)
	}

	return SignupConfirmationInput(p), nil
}
