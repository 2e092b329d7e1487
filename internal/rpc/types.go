package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// #region replies
// DeliverReply is the outcome of one delivery.
type DeliverReply struct {
	Charged     bool   `json:"charged"`
	CellIndex   int    `json:"cell_index"`
	RocketBuilt bool   `json:"rocket_built"`
	Mode        string `json:"mode"`
	ModeChanged bool   `json:"mode_changed"`
}

// ThreatReply is the outcome of one threat.
type ThreatReply struct {
	Outcome       string `json:"outcome"`
	RocketRebuilt bool   `json:"rocket_rebuilt"`
	Mode          string `json:"mode"`
}

// ProduceReply describes a produced resource.
type ProduceReply struct {
	ID           string `json:"id"`
	Resource     string `json:"resource"`
	CellIndex    int    `json:"cell_index"`
	ProducedAtMs int64  `json:"produced_at_ms"`
}

// #endregion replies

// #region struct-codec
// toStruct renders v through its JSON form. structpb only accepts plain
// JSON shapes, so typed slices and nested structs go through encoding/json.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal reply: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal reply: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("build struct: %w", err)
	}
	return s, nil
}

// fromStruct decodes s into v through its JSON form.
func fromStruct(s *structpb.Struct, v any) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal struct: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

// #endregion struct-codec
