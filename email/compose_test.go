package email

import (
	"strings"
	"testing"
)

func TestMarkdownToPlain(t *testing.T) {
	tests := []struct {
		name string
		md   string
		want string
	}{
		{name: "bold", md: "This is **bold** text", want: "This is bold text"},
		{name: "italic", md: "This is *italic* text", want: "This is italic text"},
		{name: "link", md: "Visit [Example](https://example.com) now", want: "Visit Example (https://example.com) now"},
		{name: "heading", md: "## Section Title\n\nSome text", want: "Section Title\n\nSome text"},
		{name: "inline code", md: "Use the `fmt.Println` function", want: "Use the fmt.Println function"},
		{name: "plain text unchanged", md: "Just some regular text.", want: "Just some regular text."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := markdownToPlain(tt.md)
			if got != tt.want {
				t.Errorf("markdownToPlain(%q) = %q, want %q", tt.md, got, tt.want)
			}
		})
	}
}

func TestComposeMessageProducesValidHeaders(t *testing.T) {
	msg, err := composeMessage(composeOptions{
		From:    "Workflow Engine <noreply@example.com>",
		To:      []string{"approver@example.com"},
		Subject: "Approval needed: purchase order 42",
		Body:    "Please **approve** this request.\n\nApprove: https://engine.example.com/webhooks/approve/po/42",
	})
	if err != nil {
		t.Fatalf("composeMessage: %v", err)
	}

	out := string(msg)
	if !strings.Contains(out, "Subject: Approval needed") {
		t.Errorf("message missing subject header: %s", out)
	}
	if !strings.Contains(out, "approver@example.com") {
		t.Errorf("message missing recipient: %s", out)
	}
	if !strings.Contains(out, "multipart/alternative") {
		t.Errorf("message missing multipart/alternative structure: %s", out)
	}
	if !strings.Contains(out, "text/html") {
		t.Errorf("message missing text/html part: %s", out)
	}
}

func TestComposeMessageRejectsInvalidFromAddress(t *testing.T) {
	_, err := composeMessage(composeOptions{From: "not-an-address", To: []string{"a@example.com"}})
	if err == nil {
		t.Fatal("expected an error for an invalid From address")
	}
}

func TestSplitRecipients(t *testing.T) {
	got := splitRecipients("a@example.com, b@example.com,  c@example.com")
	want := []string{"a@example.com", "b@example.com", "c@example.com"}
	if len(got) != len(want) {
		t.Fatalf("splitRecipients returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitRecipients[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtractAddress(t *testing.T) {
	cases := map[string]string{
		"Jane Doe <jane@example.com>": "jane@example.com",
		"jane@example.com":            "jane@example.com",
	}
	for in, want := range cases {
		if got := extractAddress(in); got != want {
			t.Errorf("extractAddress(%q) = %q, want %q", in, got, want)
		}
	}
}
