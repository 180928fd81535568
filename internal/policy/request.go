package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrInvalid is returned for any request the caller must fix: a missing or
// empty policies list, a head entry that does not decode, or one that fails
// validation. The HTTP layer maps it to 400.
var ErrInvalid = errors.New("invalid request body")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Request is the envelope shared by both decision endpoints. The wire format
// accepts a list but only the first entry is ever processed; the rest are
// kept undecoded so a malformed trailing entry cannot fail the request.
type Request struct {
	Policies []json.RawMessage `json:"policies"`
}

// NewRequest wraps a single policy in an envelope. Used by the CLI and tests.
func NewRequest(p Policy) (Request, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return Request{}, fmt.Errorf("policy: marshal: %w", err)
	}
	return Request{Policies: []json.RawMessage{raw}}, nil
}

// Head decodes and validates the first policy in the request. A missing
// policyId is replaced by a fresh UUID.
func (r Request) Head() (Policy, error) {
	if len(r.Policies) == 0 {
		return Policy{}, fmt.Errorf("%w: policies must be a non-empty array", ErrInvalid)
	}

	head := bytes.TrimSpace(r.Policies[0])
	if len(head) == 0 || bytes.Equal(head, []byte("null")) {
		return Policy{}, fmt.Errorf("%w: first policy is null", ErrInvalid)
	}

	var p Policy
	if err := json.Unmarshal(head, &p); err != nil {
		return Policy{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := p.Validate(); err != nil {
		return Policy{}, err
	}

	if p.PolicyID == "" {
		p.PolicyID = uuid.NewString()
	}
	return p, nil
}

// Validate checks every field constraint and returns the first violation
// wrapped in ErrInvalid.
func (p Policy) Validate() error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q", ErrInvalid, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	switch {
	case p.StartDate.IsZero():
		return fmt.Errorf("%w: startDate is required", ErrInvalid)
	case p.EndDate.IsZero():
		return fmt.Errorf("%w: endDate is required", ErrInvalid)
	case p.EndDate.Before(p.StartDate.Time):
		return fmt.Errorf("%w: endDate %s is before startDate %s", ErrInvalid, p.EndDate, p.StartDate)
	}
	return nil
}
