package resolver

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// LoadConnectionConfig reads the connection-configuration result into the bridge.
// Accepted shapes:
//
//	{"connections": {"LS1": {"id": "...", "displayName": "...", "type": "..."}}}
//	{"LS1": {"id": "..."}}
//	{"LS1": "connection-id"}
func LoadConnectionConfig(path string) (map[string]ConnectionDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read connection config: %w", err)
	}
	return ParseConnectionConfig(data)
}

func ParseConnectionConfig(data []byte) (map[string]ConnectionDescriptor, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode connection config: %w", err)
	}
	if inner, ok := root["connections"]; ok {
		root = nil
		if err := json.Unmarshal(inner, &root); err != nil {
			return nil, fmt.Errorf("decode connection config: connections: %w", err)
		}
	}

	out := make(map[string]ConnectionDescriptor, len(root))
	for name, raw := range root {
		var id string
		if err := json.Unmarshal(raw, &id); err == nil {
			out[name] = ConnectionDescriptor{ID: id}
			continue
		}
		var d struct {
			ConnectionDescriptor
			ConnectionID string `json:"connectionId"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode connection config entry %q: %w", name, err)
		}
		if d.ID == "" {
			d.ID = d.ConnectionID
		}
		out[name] = d.ConnectionDescriptor
	}
	return out, nil
}

// LoadActivityMapping reads an activity-to-connection mapping in either format:
//
//	reference-id keyed: {"mappings": [{"pipeline": "P1", "activity": "Copy1", "role": "source",
//	                                   "linkedService": "LS1", "connectionId": "..."}]}
//	legacy:             {"P1_Copy1": "connection-id"} or {"P1_Copy1": {"connectionId": "..."}}
func LoadActivityMapping(path string) (*Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read activity mapping: %w", err)
	}
	return ParseActivityMapping(data)
}

func ParseActivityMapping(data []byte) (*Context, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode activity mapping: %w", err)
	}
	ctx := NewContext()

	if raw, ok := root["mappings"]; ok {
		var records []ActivityMapping
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("decode activity mapping records: %w", err)
		}
		for _, m := range records {
			ctx.Record(m)
		}
		return ctx, nil
	}

	keys := make([]string, 0, len(root))
	for k := range root {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		raw := root[key]
		var id string
		if err := json.Unmarshal(raw, &id); err == nil {
			ctx.ByActivityName[key] = id
			continue
		}
		var obj struct {
			ConnectionID string `json:"connectionId"`
			ID           string `json:"id"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("decode legacy mapping %q: %w", key, err)
		}
		if obj.ConnectionID == "" {
			obj.ConnectionID = obj.ID
		}
		if obj.ConnectionID != "" {
			ctx.ByActivityName[key] = obj.ConnectionID
		}
	}
	return ctx, nil
}
