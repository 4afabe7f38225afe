package task

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestResultJSON_StateByName(t *testing.T) {
	r := Result{RunID: "abc", Stamp: "20261017_070000", State: StateFailed, Error: "boom"}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"state":"FAILED"`) {
		t.Errorf("state should be encoded by name: %s", data)
	}
}

func TestPolicyString(t *testing.T) {
	want := `{"approval-policy":"never","sandbox":"workspace-write"}`
	if got := DefaultPolicy().String(); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}
