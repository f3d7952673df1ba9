package models

import (
	"encoding/json"
	"testing"
)

// TestProject_UnknownMembersSurvive verifies that members without a struct
// field are kept at each level and written back.
func TestProject_UnknownMembersSurvive(t *testing.T) {
	in := `{"projectId":"p","projectName":"P","phases":[{"phaseId":"f","phaseName":"F","isExpanded":false,"completed":false,"tasks":[],"color":"#fff"}],"owner":{"id":1}}`

	var p Project
	if err := json.Unmarshal([]byte(in), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if string(p.Extra["owner"]) != `{"id":1}` {
		t.Errorf("project Extra[owner] = %s", p.Extra["owner"])
	}
	if string(p.Phases[0].Extra["color"]) != `"#fff"` {
		t.Errorf("phase Extra[color] = %s", p.Phases[0].Extra["color"])
	}
	if _, ok := p.Extra["phases"]; ok {
		t.Error("modelled member phases must not be copied into Extra")
	}
	if p.Phases[0].Completed == nil || *p.Phases[0].Completed {
		t.Errorf("phase Completed = %v, want explicit false", p.Phases[0].Completed)
	}

	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var want, got map[string]any
	_ = json.Unmarshal([]byte(in), &want)
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("re-decode: %v (%s)", err, out)
	}
	if len(got) != len(want) {
		t.Errorf("Marshal() = %s, want members of %s", out, in)
	}
	phase := got["phases"].([]any)[0].(map[string]any)
	if phase["color"] != "#fff" || phase["completed"] != false {
		t.Errorf("phase = %v", phase)
	}
}

// TestExtra_MarshalEmptyObject verifies extras are appended to an object with no own members.
func TestExtra_MarshalEmptyObject(t *testing.T) {
	out, err := Extra{"b": json.RawMessage(`2`), "a": json.RawMessage(`1`)}.marshal(struct{}{})
	if err != nil {
		t.Fatalf("marshal() error = %v", err)
	}
	if string(out) != `{"a":1,"b":2}` {
		t.Errorf("marshal() = %s", out)
	}
}

// TestTimestamp_KeepsForm verifies numbers stay numbers and strings stay strings.
func TestTimestamp_KeepsForm(t *testing.T) {
	for _, in := range []string{`{"timestamp":1700000000000}`, `{"timestamp":"1700000000000"}`} {
		var c Comment
		if err := json.Unmarshal([]byte(in), &c); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", in, err)
		}
		if c.Timestamp.Text() != "1700000000000" {
			t.Errorf("Text() = %q", c.Timestamp.Text())
		}
		out, _ := json.Marshal(c)
		if want := `{"author":"","text":"",` + in[1:]; string(out) != want {
			t.Errorf("Marshal() = %s, want %s", out, want)
		}
	}

	var c Comment
	out, _ := json.Marshal(c)
	if string(out) != `{"author":"","text":"","timestamp":""}` {
		t.Errorf("zero Comment = %s", out)
	}
}
