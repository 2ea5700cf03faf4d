package core

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestItem_Constructors(t *testing.T) {
	u := NewUserMessage("hello")
	if u.Kind != ItemUserMessage || u.Content.Role != RoleUser || u.Text() != "hello" || u.ID == "" {
		t.Fatalf("NewUserMessage malformed: %+v", u)
	}

	a := NewAssistantMessage("agent1", Content{Parts: []Part{TextPart{Text: "hi"}}})
	if a.Kind != ItemAssistantMessage || a.Content.Role != RoleAssistant || a.Agent != "agent1" {
		t.Fatalf("NewAssistantMessage malformed: %+v", a)
	}

	call := NewToolCall("agent1", FunctionCall{ID: "c1", Name: "sum", Arguments: `{"a":1}`})
	fc, ok := call.FunctionCall()
	if !ok || fc.Name != "sum" || fc.ID != "c1" {
		t.Fatalf("tool call extraction failed: %+v", call)
	}

	okRes := NewToolResult("agent1", "c1", "sum", 42, nil)
	fr, ok := okRes.FunctionResponse()
	if !ok || fr.Error != "" || fr.Response != int64(42) {
		t.Fatalf("tool result success malformed: %+v", fr)
	}

	errRes := NewToolResult("agent1", "c2", "sum", nil, errors.New("boom"))
	fr, _ = errRes.FunctionResponse()
	if fr.Error != "boom" || fr.Response != nil {
		t.Fatalf("tool result error malformed: %+v", fr)
	}

	marker := NewTransferMarker("triage", "c3", "transfer_to_agent", "billing")
	target, ok := marker.TransferTarget()
	if !ok || target != "billing" {
		t.Fatalf("transfer target = %q, %v", target, ok)
	}
	if _, ok := a.TransferTarget(); ok {
		t.Fatal("assistant message must not report a transfer target")
	}
}

func TestItems_JSONRoundTrip(t *testing.T) {
	items := Renumber([]Item{
		NewUserMessage("Hi, I'm Alice"),
		NewToolCall("a", FunctionCall{ID: "c1", Name: "lookup", Arguments: `{"q":"x"}`}),
		NewToolResult("a", "c1", "lookup", map[string]any{"n": 1, "tags": []string{"x"}}, nil),
		NewTransferMarker("a", "c2", "transfer_to_agent", "b"),
		NewAssistantMessage("b", Content{Parts: []Part{
			TextPart{Text: "done", Metadata: map[string]any{"k": "v"}},
			DataPart{Data: map[string]any{"answer": true}},
		}}),
	}, 3)

	b, err := MarshalItems(items)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := UnmarshalItems(b)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != len(items) {
		t.Fatalf("len = %d, want %d", len(got), len(items))
	}
	for i := range items {
		if !got[i].CreatedAt.Equal(items[i].CreatedAt) {
			t.Fatalf("item %d timestamp changed", i)
		}
		got[i].CreatedAt = items[i].CreatedAt
		if !reflect.DeepEqual(got[i], items[i]) {
			t.Fatalf("item %d differs:\n got %#v\nwant %#v", i, got[i], items[i])
		}
		if got[i].Ordinal != 3+i {
			t.Fatalf("item %d ordinal = %d", i, got[i].Ordinal)
		}
	}
}

func TestItem_UnmarshalRejectsUnknownKind(t *testing.T) {
	var it Item
	err := json.Unmarshal([]byte(`{"id":"x","kind":"bogus","content":{"parts":[]}}`), &it)
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
	err = json.Unmarshal([]byte(`{"id":"x","kind":"user_message","content":{"parts":[{"type":"video"}]}}`), &it)
	if err == nil {
		t.Fatal("expected error for unknown part type")
	}
}

func TestUnmarshalItems_Empty(t *testing.T) {
	got, err := UnmarshalItems([]byte("null"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestCloneItems_Independent(t *testing.T) {
	orig := []Item{NewUserMessage("a")}
	cp := CloneItems(orig)
	cp[0].Content.Parts[0] = TextPart{Text: "changed"}
	if orig[0].Text() != "a" {
		t.Fatal("clone shares parts with original")
	}
}

func TestContent_NumbersKeepPrecision(t *testing.T) {
	in := Content{Parts: []Part{
		DataPart{
			Data:     map[string]any{"id": int64(9007199254740993), "ratio": 0.25, "nested": []any{int64(-7), 1.5e300}},
			Metadata: map[string]any{"big": json.Number("18446744073709551615")},
		},
		FunctionResponsePart{FunctionResponse: FunctionResponse{Name: "count", Response: map[string]any{"n": int64(1) << 60}}},
	}}

	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Content
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("content differs:\n got %#v\nwant %#v", got, in)
	}

	res := NewToolResult("a", "c1", "id", map[string]any{"id": int64(9007199254740993)}, nil)
	fr, _ := res.FunctionResponse()
	if id := fr.Response.(map[string]any)["id"]; id != int64(9007199254740993) {
		t.Fatalf("tool result id = %#v", id)
	}
}

func TestContent_InvalidUTF8IsReplaced(t *testing.T) {
	b, err := json.Marshal(Content{Parts: []Part{TextPart{Text: "bad\xffutf8"}}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Content
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Text() != "bad�utf8" {
		t.Fatalf("text = %q", got.Text())
	}
}
