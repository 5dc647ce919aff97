package rpcjson

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type message struct {
	RoomID string `json:"room_id"`
	Limit  int    `json:"limit"`
}

func TestCodec(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    message
		wantErr bool
	}{
		{name: "fields", data: `{"room_id":"abc","limit":3}`, want: message{RoomID: "abc", Limit: 3}},
		{name: "empty body", data: ``, want: message{}},
		{name: "unknown field", data: `{"room":"abc"}`, wantErr: true},
		{name: "not json", data: `room`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got message
			err := Codec{}.Unmarshal([]byte(tt.data), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" && !tt.wantErr {
				t.Errorf("Unmarshal() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
