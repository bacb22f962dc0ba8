package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	return &sesv2.SendEmailOutput{}, f.err
}

func TestSESDeliverBuildsHTMLMail(t *testing.T) {
	fake := &fakeSES{}
	tr := newSESTransport(fake, "bot@example.com", "ops@example.com", "")
	if err := tr.Deliver(context.Background(), "line1\nline2"); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	body := *fake.input.Content.Simple.Body.Html.Data
	if !strings.Contains(body, "line1<br>\nline2") {
		t.Fatalf("expected line breaks converted, got %q", body)
	}
	if *fake.input.Content.Simple.Subject.Data != "Survey result" {
		t.Fatalf("expected default subject")
	}
	if fake.input.Destination.ToAddresses[0] != "ops@example.com" {
		t.Fatalf("unexpected recipient %v", fake.input.Destination.ToAddresses)
	}
}

func TestSESDeliverWrapsError(t *testing.T) {
	tr := newSESTransport(&fakeSES{err: errors.New("throttled")}, "a@b", "c@d", "s")
	if err := tr.Deliver(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
