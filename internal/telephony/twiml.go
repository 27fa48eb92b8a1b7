package telephony

import (
	"bytes"
	"encoding/xml"
)

// Minimal TwiML builder. It intentionally avoids any provider SDK dependency;
// only the verbs this system emits are modeled.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlPause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr,omitempty"`
}

type twimlGather struct {
	XMLName xml.Name `xml:"Gather"`
}

type twimlMessage struct {
	XMLName xml.Name `xml:"Message"`
	Body    string   `xml:",chardata"`
}

// VoiceInstruction is the static outbound-call instruction document. The
// provider fetches it from this deployment when a call it is bridging needs
// next steps: greeting, short pause, then digit collection to end the call.
func VoiceInstruction() (string, error) {
	return render(twimlResponse{Verbs: []any{
		twimlSay{Voice: "woman", Text: "Hello! This is a call from your PhoneB application."},
		twimlPause{Length: 1},
		twimlSay{Voice: "woman", Text: "Press any key to end the call."},
		twimlGather{},
	}})
}

// MessageAck acknowledges an inbound message webhook with an auto-reply.
func MessageAck(body string) (string, error) {
	return render(twimlResponse{Verbs: []any{
		twimlMessage{Body: body},
	}})
}

// EmptyAck is a bare acknowledgement: well-formed, no verbs. Returned for
// call events and for events this system cannot attribute to an owner.
func EmptyAck() (string, error) {
	return render(twimlResponse{})
}

func render(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
