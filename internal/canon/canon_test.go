package canon

import "testing"

func TestJSONKeyOrderInvariant(t *testing.T) {
	a := map[string]interface{}{"b": 2, "a": 1, "c": map[string]interface{}{"y": 1, "x": 2}}
	b := map[string]interface{}{"c": map[string]interface{}{"x": 2, "y": 1}, "a": 1, "b": 2}

	outA, err := JSON(a)
	if err != nil {
		t.Fatalf("JSON(a): %v", err)
	}
	outB, err := JSON(b)
	if err != nil {
		t.Fatalf("JSON(b): %v", err)
	}
	if string(outA) != string(outB) {
		t.Fatalf("canonical JSON differs by key order: %s vs %s", outA, outB)
	}
}

func TestHashJSONDeterministic(t *testing.T) {
	v := struct {
		Foo string `json:"foo"`
		Bar int    `json:"bar"`
	}{Foo: "x", Bar: 1}

	h1, err := HashJSON(v)
	if err != nil {
		t.Fatalf("HashJSON: %v", err)
	}
	h2, err := HashJSON(v)
	if err != nil {
		t.Fatalf("HashJSON: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hash not deterministic: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64-char hex digest, got %d chars", len(h1))
	}
}

func TestHashJSONChangesWithData(t *testing.T) {
	h1, _ := HashJSON(map[string]interface{}{"n": 1})
	h2, _ := HashJSON(map[string]interface{}{"n": 2})
	if h1 == h2 {
		t.Fatal("expected different hashes for different data")
	}
}
