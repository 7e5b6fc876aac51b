package bounce

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBouncedRecipient(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		body    string
		want    string
	}{
		{
			name:    "dsn final-recipient",
			subject: "Delivery Status Notification (Failure)",
			body:    "Reporting-MTA: dns; mx.example.com\nFinal-Recipient: rfc822; dead@acme.com\nAction: failed",
			want:    "dead@acme.com",
		},
		{
			name:    "exim x-failed-recipients",
			subject: "Mail delivery failed: returning message to sender",
			body:    "X-Failed-Recipients: gone@acme.com\nThis message was created automatically.",
			want:    "gone@acme.com",
		},
		{
			name:    "undeliverable with bare address",
			subject: "Undeliverable: Regarding Go Engineer at Acme",
			body:    "Your message to <nobody@acme.com> couldn't be delivered.",
			want:    "nobody@acme.com",
		},
		{
			name:    "mailer-daemon address skipped",
			subject: "Undeliverable: hello",
			body:    "From MAILER-DAEMON@mx.example.com",
			want:    "",
		},
		{
			name:    "regular reply is never parsed",
			subject: "Re: Regarding Go Engineer at Acme",
			body:    "Thanks! Reach me at someone@acme.com",
			want:    "",
		},
		{
			name:    "case-insensitive subject gate",
			subject: "UNDELIVERED MAIL RETURNED TO SENDER",
			body:    "Final-Recipient: RFC822; Mixed@Case.Com",
			want:    "mixed@case.com",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractBouncedRecipient(tc.subject, tc.body))
		})
	}
}
