package chain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownOperation is returned when a submitted operation names a kind the
// engine does not implement.
var ErrUnknownOperation = errors.New("unknown operation kind")

// DecodeOperation unmarshals one operation from its wire form. The kind tag
// selects the concrete type; the remaining fields are the operation's own
// JSON shape.
func DecodeOperation(kind string, data []byte) (Operation, error) {
	var op Operation
	switch kind {
	case "create_rules":
		op = &CreateRulesOp{}
	case "update_rules":
		op = &UpdateRulesOp{}
	case "create_event":
		op = &CreateEventOp{}
	case "create_group":
		op = &CreateGroupOp{}
	case "update_group":
		op = &UpdateGroupOp{}
	case "create_market":
		op = &CreateMarketOp{}
	case "update_market":
		op = &UpdateMarketOp{}
	case "place_bet":
		op = &PlaceBetOp{}
	case "cancel_bet":
		op = &CancelBetOp{}
	case "resolve_group":
		op = &ResolveGroupOp{}
	case "cancel_unmatched_bets":
		op = &CancelUnmatchedBetsOp{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, kind)
	}
	if err := json.Unmarshal(data, op); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return op, nil
}

// DecodeOperations unmarshals a batch of wire operations. Each element is the
// operation's JSON object carrying a "kind" field alongside its own fields.
func DecodeOperations(raw []json.RawMessage) ([]Operation, error) {
	ops := make([]Operation, 0, len(raw))
	for i, r := range raw {
		var env struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(r, &env); err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
		op, err := DecodeOperation(env.Kind, r)
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}
