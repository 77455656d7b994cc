package json

import (
	"testing"
)

type scheduleFixture struct {
	TrainID       string   `json:"train_id"`
	DepartureTime string   `json:"departure_time"`
	Route         []string `json:"route,omitempty"`
}

func TestMarshal(t *testing.T) {
	obj := scheduleFixture{
		TrainID:       "123",
		DepartureTime: "2025-04-15T10:00:00",
	}

	data, err := Marshal(obj)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	expected := `{"train_id":"123","departure_time":"2025-04-15T10:00:00"}`
	if string(data) != expected {
		t.Errorf("Marshal result mismatch: got %s, want %s", string(data), expected)
	}
}

func TestUnmarshal(t *testing.T) {
	data := []byte(`{"train_id":"123","departure_time":"2025-04-15T10:00:00","route":["A","B","C"]}`)

	var obj scheduleFixture
	if err := Unmarshal(data, &obj); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if obj.TrainID != "123" {
		t.Errorf("TrainID mismatch: got %s, want 123", obj.TrainID)
	}
	if len(obj.Route) != 3 || obj.Route[0] != "A" {
		t.Errorf("Route mismatch: got %v", obj.Route)
	}
}

func TestMarshalToString_MapKeysSorted(t *testing.T) {
	// 缓存中的 last message 需要稳定的输出，map 键按字典序排列
	m := map[string]interface{}{
		"tickets":    []interface{}{},
		"train_id":   "123",
		"passengers": []interface{}{map[string]interface{}{"passenger_id": "789"}},
		"schedule":   map[string]interface{}{},
	}

	str, err := MarshalToString(m)
	if err != nil {
		t.Fatalf("MarshalToString failed: %v", err)
	}

	expected := `{"passengers":[{"passenger_id":"789"}],"schedule":{},"tickets":[],"train_id":"123"}`
	if str != expected {
		t.Errorf("MarshalToString mismatch: got %s, want %s", str, expected)
	}
}

func TestUnmarshalFromString_Generic(t *testing.T) {
	var m map[string]interface{}
	if err := UnmarshalFromString(`{"ticket_id":"456","seat_number":"12A"}`, &m); err != nil {
		t.Fatalf("UnmarshalFromString failed: %v", err)
	}
	if m["ticket_id"] != "456" {
		t.Errorf("ticket_id mismatch: got %v", m["ticket_id"])
	}
}

func TestRawMessage(t *testing.T) {
	type wrapper struct {
		Body RawMessage `json:"body"`
	}

	w := wrapper{Body: RawMessage(`{"passenger_id":"789"}`)}
	data, err := Marshal(w)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"body":{"passenger_id":"789"}}` {
		t.Errorf("RawMessage not preserved: %s", string(data))
	}
}

func TestUnmarshal_Malformed(t *testing.T) {
	var m map[string]interface{}
	if err := Unmarshal([]byte(`{"train_id":`), &m); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}
