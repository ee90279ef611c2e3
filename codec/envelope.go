package codec

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server message types.
const (
	TypeWelcome  = "welcome"
	TypeSnapshot = "snapshot"
	TypeClick    = "click"
	TypeGameEnd  = "gameEnd"
	TypeError    = "error"
)

// Client message types.
const (
	TypeHello       = "hello"
	TypeNewGame     = "new_game"
	TypeClickCell   = "click"
	TypeGetSnapshot = "snapshot"
	TypeLeave       = "leave"
)

// ServerEnvelope is the frame sent to clients. On the wire it is a
// google.protobuf.Struct in binary encoding.
type ServerEnvelope struct {
	Type       string
	SessionID  string
	ServerSeq  uint64
	ServerTsMs int64
	Payload    map[string]any
}

type ClientEnvelope struct {
	Type  string
	Token string
	Row   int
	Col   int
}

var marshalOpts = proto.MarshalOptions{Deterministic: true}

// WrapServerEnvelope stamps a payload with session, sequence and wall time.
func WrapServerEnvelope(sessionID string, serverSeq uint64, kind string, payload map[string]any) ServerEnvelope {
	return ServerEnvelope{
		Type:       kind,
		SessionID:  sessionID,
		ServerSeq:  serverSeq,
		ServerTsMs: time.Now().UnixMilli(),
		Payload:    payload,
	}
}

func MarshalServer(env ServerEnvelope) ([]byte, error) {
	payload := env.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	s, err := structpb.NewStruct(map[string]any{
		"type":         env.Type,
		"session_id":   env.SessionID,
		"server_seq":   env.ServerSeq,
		"server_ts_ms": env.ServerTsMs,
		"payload":      payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode server envelope: %w", err)
	}
	return marshalOpts.Marshal(s)
}

// UnmarshalServer decodes a server frame. Payload numbers come back as
// float64 and lists as []any.
func UnmarshalServer(data []byte) (ServerEnvelope, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return ServerEnvelope{}, fmt.Errorf("decode server envelope: %w", err)
	}
	fields := s.GetFields()
	env := ServerEnvelope{
		Type:       fields["type"].GetStringValue(),
		SessionID:  fields["session_id"].GetStringValue(),
		ServerSeq:  uint64(fields["server_seq"].GetNumberValue()),
		ServerTsMs: int64(fields["server_ts_ms"].GetNumberValue()),
	}
	if p := fields["payload"].GetStructValue(); p != nil {
		env.Payload = p.AsMap()
	}
	return env, nil
}

func MarshalClient(env ClientEnvelope) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"type":  env.Type,
		"token": env.Token,
		"row":   env.Row,
		"col":   env.Col,
	})
	if err != nil {
		return nil, fmt.Errorf("encode client envelope: %w", err)
	}
	return marshalOpts.Marshal(s)
}

func UnmarshalClient(data []byte) (ClientEnvelope, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return ClientEnvelope{}, fmt.Errorf("decode client envelope: %w", err)
	}
	fields := s.GetFields()
	env := ClientEnvelope{
		Type:  fields["type"].GetStringValue(),
		Token: fields["token"].GetStringValue(),
		Row:   int(fields["row"].GetNumberValue()),
		Col:   int(fields["col"].GetNumberValue()),
	}
	if env.Type == "" {
		return env, fmt.Errorf("decode client envelope: missing type")
	}
	return env, nil
}
