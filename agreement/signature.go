package agreement

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type SignatureKind string

const (
	KindDigital SignatureKind = "digital"
	KindOTP     SignatureKind = "otp"
)

const otpLength = 6

// Payload is the kind-specific body of a signature.
type Payload interface {
	Kind() SignatureKind
	Validate() error
}

// DigitalPayload is a typed-name signature.
type DigitalPayload struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

func (DigitalPayload) Kind() SignatureKind { return KindDigital }

func (p DigitalPayload) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("signature name is required")
	}
	return nil
}

// OTPPayload is a one-time-code signature.
type OTPPayload struct {
	Code      string    `json:"code"`
	Verified  bool      `json:"verified"`
	Timestamp time.Time `json:"timestamp"`
}

func (OTPPayload) Kind() SignatureKind { return KindOTP }

func (p OTPPayload) Validate() error {
	if len(p.Code) != otpLength {
		return fmt.Errorf("code must be %d characters", otpLength)
	}
	return nil
}

func encodePayload(p Payload) ([]byte, error) {
	return json.Marshal(p)
}

func decodePayload(kind SignatureKind, data []byte) (Payload, error) {
	switch kind {
	case KindDigital:
		var p DigitalPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindOTP:
		var p OTPPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown signature kind %q", kind)
	}
}
