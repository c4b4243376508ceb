package a2a_test

import (
	"encoding/json"
	"testing"

	"github.com/a2abench/a2abench/internal/a2a"
	"github.com/stretchr/testify/require"
)

func TestPart_UnmarshalDispatchesOnKind(t *testing.T) {
	var text a2a.Part
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"text","text":"hello"}`), &text))
	require.Equal(t, a2a.PartKindText, text.Kind)
	require.Equal(t, "hello", text.Text)

	var data a2a.Part
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"data","data":{"tools":[]}}`), &data))
	require.Equal(t, a2a.PartKindData, data.Kind)
	require.Contains(t, data.Data, "tools")
}

func TestPart_UnmarshalIgnoresForeignFields(t *testing.T) {
	// Remote implementations attach extra metadata to parts; only the kind
	// discriminant decides how a part is read.
	var p a2a.Part
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"text","text":"x","metadata":{"a":1}}`), &p))
	require.Equal(t, "x", p.Text)
}

func TestPart_UnmarshalRejectsUnknownKind(t *testing.T) {
	var p a2a.Part
	err := json.Unmarshal([]byte(`{"kind":"file","uri":"x"}`), &p)
	require.Error(t, err)
}

func TestPart_MarshalRoundTrip(t *testing.T) {
	in := a2a.DataPart(map[string]any{"score": 1.5})
	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out a2a.Part
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, a2a.PartKindData, out.Kind)
	require.Equal(t, 1.5, out.Data["score"])
}

func TestNewMessage_AssignsMessageID(t *testing.T) {
	msg := a2a.NewMessage(a2a.RoleUser, []a2a.Part{a2a.TextPart("hi")}, "ctx-1")
	require.Equal(t, "message", msg.Kind)
	require.Equal(t, a2a.RoleUser, msg.Role)
	require.Equal(t, "ctx-1", msg.ContextID)
	require.NotEmpty(t, msg.MessageID)

	other := a2a.NewMessage(a2a.RoleUser, nil, "")
	require.NotEqual(t, msg.MessageID, other.MessageID)
}

func TestMergeParts_ConcatenatesTextAndData(t *testing.T) {
	parts := []a2a.Part{
		a2a.TextPart("hello"),
		a2a.DataPart(map[string]any{"k": "v"}),
		a2a.TextPart("world"),
	}
	merged := a2a.MergeParts(parts)
	require.Contains(t, merged, "hello")
	require.Contains(t, merged, "world")
	require.Contains(t, merged, `"k": "v"`)
}
