package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"nexus/errs"
)

func Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("trying to encode envelope type nil")
	}
	if payload == nil {
		return nil, fmt.Errorf("trying to encode nil payload")
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var e = Envelope{t, pb}

	return json.Marshal(e)
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, errs.Validation("empty frame")
	}
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, errs.Wrap(errs.KindValidation, err, "invalid envelope")
	}
	if e.T == "" {
		return Envelope{}, errs.Validation("envelope has no event type")
	}
	return e, nil
}

func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if isEmpty(env.P) {
		return out, errs.Validation("empty payload for %q", env.T)
	}
	dec := json.NewDecoder(bytes.NewReader(env.P))
	if err := dec.Decode(&out); err != nil {
		return out, errs.Wrap(errs.KindValidation, err, fmt.Sprintf("invalid %s payload", env.T))
	}
	return out, nil
}

// DecodeCommand decodes and validates the payload of an inbound event.
func DecodeCommand(env Envelope) (Command, error) {
	var (
		cmd Command
		err error
	)
	switch env.T {
	case MsgRegisterUser:
		// Every field is optional, so the payload may be omitted.
		if isEmpty(env.P) {
			return RegisterUser{}, nil
		}
		cmd, err = DecodePayload[RegisterUser](env)
	case MsgCreateSession:
		cmd, err = DecodePayload[CreateSession](env)
	case MsgJoinSession:
		cmd, err = DecodePayload[JoinSession](env)
	case MsgLeaveSession:
		cmd, err = DecodePayload[LeaveSession](env)
	case MsgUpdateGameState:
		cmd, err = DecodePayload[UpdateGameState](env)
	case MsgClaimTerritory:
		cmd, err = DecodePayload[ClaimTerritory](env)
	case MsgExtractResources:
		cmd, err = DecodePayload[ExtractResources](env)
	case MsgDeployAgent:
		cmd, err = DecodePayload[DeployAgent](env)
	case MsgContributeResources:
		cmd, err = DecodePayload[ContributeResources](env)
	default:
		return nil, errs.Validation("unsupported event %q", env.T)
	}
	if err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func isEmpty(p json.RawMessage) bool {
	p = bytes.TrimSpace(p)
	return len(p) == 0 || bytes.Equal(p, []byte("null"))
}
