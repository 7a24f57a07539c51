package http

import (
	"encoding/json"
	"testing"
)

func TestFlexString_Age(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: `30`, want: "30"},
		{in: `"30"`, want: "30"},
		{in: `30.0`, want: "30"},
		{in: `3e1`, want: "30"},
		{in: `30.5`, want: "30.5"},
		{in: `null`, want: ""},
		{in: `true`, wantErr: true},
		{in: `{}`, wantErr: true},
	}
	for _, tc := range cases {
		var got struct {
			Age flexString `json:"age"`
		}
		err := json.Unmarshal([]byte(`{"age":`+tc.in+`}`), &got)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error, got %q", tc.in, got.Age)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: err=%v", tc.in, err)
		}
		if string(got.Age) != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.in, got.Age, tc.want)
		}
	}
}
