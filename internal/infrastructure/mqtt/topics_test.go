package mqtt

import "testing"

func TestTopics_State(t *testing.T) {
	got := Topics{}.State("hm-rpc.0.JEQ0318.1.STATE")
	want := "stategate/state/hm-rpc/0/JEQ0318/1/STATE"
	if got != want {
		t.Errorf("State() = %q, want %q", got, want)
	}
}

func TestTopics_Ack(t *testing.T) {
	got := Topics{}.Ack("javascript.0.brightness")
	want := "stategate/ack/javascript/0/brightness"
	if got != want {
		t.Errorf("Ack() = %q, want %q", got, want)
	}
}

func TestIDFromTopic(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		want  string
	}{
		{name: "state topic", topic: "stategate/state/hm-rpc/0/STATE", want: "hm-rpc.0.STATE"},
		{name: "ack topic", topic: "stategate/ack/javascript/0/brightness", want: "javascript.0.brightness"},
		{name: "system topic", topic: "stategate/system/status", want: ""},
		{name: "foreign topic", topic: "other/state/x", want: ""},
		{name: "empty remainder", topic: "stategate/ack/", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IDFromTopic(tt.topic); got != tt.want {
				t.Errorf("IDFromTopic(%q) = %q, want %q", tt.topic, got, tt.want)
			}
		})
	}
}
