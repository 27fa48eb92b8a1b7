package telephony

import (
	"strings"
	"testing"
)

func TestVoiceInstruction(t *testing.T) {
	xml, err := VoiceInstruction()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{"<Response>", "<Say voice=\"woman\">", "<Pause length=\"1\">", "<Gather>"} {
		if !strings.Contains(xml, want) {
			t.Fatalf("expected %q in xml: %s", want, xml)
		}
	}
}

func TestMessageAck(t *testing.T) {
	xml, err := MessageAck("Thanks, we got it.")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(xml, "<Message>Thanks, we got it.</Message>") {
		t.Fatalf("expected message verb in xml: %s", xml)
	}
}

func TestEmptyAckIsWellFormed(t *testing.T) {
	xml, err := EmptyAck()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(xml, "<Response>") {
		t.Fatalf("expected a Response element: %s", xml)
	}
}
