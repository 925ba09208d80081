package bus

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aatumaykin/berrus-helper/internal/game"
)

// Encode renders msg as a flat JSON object with a "type" tag, e.g.
// {"type":"JOB_COMPLETED","jobId":"job-1"}.
func Encode(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}

	tag, err := json.Marshal(msg.Type())
	if err != nil {
		return nil, err
	}
	fields["type"] = tag

	return json.Marshal(fields)
}

// Decode parses and validates a message. Unknown tags yield ErrUnknownMessage,
// shape or validation problems ErrInvalidMessage.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	var (
		msg Message
		err error
	)
	switch head.Type {
	case TypeJobDetected:
		msg, err = decodeAs[JobDetected](data)
	case TypeJobCompleted:
		msg, err = decodeAs[JobCompleted](data)
	case TypePriceSnapshot:
		msg, err = decodeAs[PriceSnapshot](data)
	case TypeXPGained:
		msg, err = decodeAs[XPGained](data)
	case TypeItemCollected:
		msg, err = decodeAs[ItemCollected](data)
	case TypeSessionEvent:
		msg, err = decodeAs[SessionEvent](data)
	case TypeContentScriptReady:
		msg = ContentScriptReady{}
	case TypeGetTimers:
		msg = GetTimers{}
	case TypeGetPrices:
		msg, err = decodeAs[GetPrices](data)
	case TypeGetSessionStats:
		msg = GetSessionStats{}
	case TypeSearchHiscores:
		msg, err = decodeAs[SearchHiscores](data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, head.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

func decodeAs[T Message](data []byte) (Message, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return v, nil
}

// DecodeResponse parses the response of a request of type t.
func DecodeResponse(t MessageType, data []byte) (any, error) {
	switch t {
	case TypeGetTimers:
		state := game.NewJobTimerState()
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", t, err)
		}
		return state, nil
	case TypeGetPrices:
		histories := []game.PriceHistory{}
		if err := json.Unmarshal(data, &histories); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", t, err)
		}
		return histories, nil
	case TypeGetSessionStats:
		var stats *game.SessionStats
		if err := json.Unmarshal(data, &stats); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", t, err)
		}
		return stats, nil
	case TypeSearchHiscores:
		var result game.HiscoreSearchResult
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", t, err)
		}
		return result, nil
	default:
		var ack Ack
		if err := json.Unmarshal(data, &ack); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", t, err)
		}
		return ack, nil
	}
}
