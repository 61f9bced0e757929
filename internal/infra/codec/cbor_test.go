package codec

import (
	"bytes"
	"testing"
)

func TestEncoderDecoderStreamKeepsStringKeys(t *testing.T) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(map[string]any{"action": "dispatch", "recipients": []int64{1, 2}}); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded any
	if err := NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	m, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("expected map[string]any, got %T", decoded)
	}
	if m["action"] != "dispatch" {
		t.Fatalf("unexpected action: %v", m["action"])
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	a, err := Marshal(map[string]int{"b": 2, "a": 1, "c": 3})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := Marshal(map[string]int{"c": 3, "a": 1, "b": 2})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("expected identical encodings")
	}
}
