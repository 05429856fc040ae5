package wire

import (
	"strings"
	"testing"
)

func TestEncodeLine_Request(t *testing.T) {
	t.Parallel()

	data, err := EncodeLine(Request{Action: ActionActivatePair, Group: "Interior", Name: "Red"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := string(data)
	if !strings.HasSuffix(got, "\n") {
		t.Errorf("expected trailing newline, got %q", got)
	}
	want := `{"action":"activate_pair","group":"Interior","name":"Red"}` + "\n"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestEncodeLine_OmitsEmptyFields(t *testing.T) {
	t.Parallel()

	data, err := EncodeLine(Request{Action: ActionPing})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := string(data), `{"action":"ping"}`+"\n"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestDecodeRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		line    string
		want    Request
		wantErr bool
	}{
		{
			name: "activate pair with token",
			line: `{"action":"activate_pair","group":"Interior","name":"Red","token":"s"}`,
			want: Request{Action: ActionActivatePair, Group: "Interior", Name: "Red", Token: "s"},
		},
		{
			name: "activate vset",
			line: `{"action":"activate_vset","vset_name":"NightMode"}`,
			want: Request{Action: ActionActivateVset, VsetName: "NightMode"},
		},
		{
			name: "surrounding whitespace tolerated",
			line: "  {\"action\":\"ping\"}\r\n",
			want: Request{Action: ActionPing},
		},
		{name: "empty line", line: "   ", wantErr: true},
		{name: "malformed json", line: "{not json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := DecodeRequest([]byte(tt.line))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestDecodeResponse(t *testing.T) {
	t.Parallel()

	resp, err := DecodeResponse([]byte(`{"ok":true,"pong":true}` + "\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Ok || !resp.Pong {
		t.Errorf("expected ok pong response, got %+v", resp)
	}

	resp, err = DecodeResponse([]byte(`{"ok":false,"error":"unauthorized"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Ok || resp.Error != ErrUnauthorized {
		t.Errorf("expected unauthorized rejection, got %+v", resp)
	}

	if _, err := DecodeResponse([]byte("garbage")); err == nil {
		t.Error("expected error for malformed ack")
	}
}
