package codec

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ocpp-central/station/internal/ocpp"
)

// validate runs the struct-tag constraints declared on every request/response
// type in internal/ocpp/messages.go (required, max length, min value). A
// single validator.Validate is safe for concurrent use and caches struct
// metadata, so one package-level instance serves every session.
var validate = validator.New()

// DecodeRequestPayload performs the second decode phase for an inbound Call:
// structural match against the Request variant for action, followed by field
// validation. Either failure is reported as FormationViolation — the server
// does not fabricate or act on a payload that doesn't match the action's
// contract.
func DecodeRequestPayload(action ocpp.Action, raw json.RawMessage) (interface{}, *DecodeError) {
	target, ok := ocpp.NewRequest(action)
	if !ok {
		return nil, &DecodeError{Kind: NotSupported, Action: string(action)}
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, &DecodeError{
			Kind:   FormationViolation,
			Action: string(action),
			Cause:  fmt.Errorf("payload does not match %s request: %w", action, err),
		}
	}
	if err := validate.Struct(target); err != nil {
		return nil, &DecodeError{
			Kind:   FormationViolation,
			Action: string(action),
			Cause:  fmt.Errorf("%s request failed validation: %w", action, err),
		}
	}
	return target, nil
}

// DecodeResponsePayload performs the second decode phase for an inbound
// CallResult, matching against the Response variant for action.
func DecodeResponsePayload(action ocpp.Action, raw json.RawMessage) (interface{}, *DecodeError) {
	target, ok := ocpp.NewResponse(action)
	if !ok {
		return nil, &DecodeError{Kind: NotSupported, Action: string(action)}
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, &DecodeError{
			Kind:   FormationViolation,
			Action: string(action),
			Cause:  fmt.Errorf("payload does not match %s response: %w", action, err),
		}
	}
	if err := validate.Struct(target); err != nil {
		return nil, &DecodeError{
			Kind:   FormationViolation,
			Action: string(action),
			Cause:  fmt.Errorf("%s response failed validation: %w", action, err),
		}
	}
	return target, nil
}
