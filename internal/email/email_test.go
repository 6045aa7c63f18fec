package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type sentEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New("re_test", "Dump <payouts@dump.app>")
	if err != nil {
		t.Fatal(err)
	}
	c, err = c.WithEndpoint(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestSendPostsToProvider(t *testing.T) {
	var (
		got     sentEmail
		path    string
		idemKey string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		idemKey = r.Header.Get("Idempotency-Key")
		if r.Header.Get("Authorization") != "Bearer re_test" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_123"}`))
	}))
	defer srv.Close()

	id, err := newTestClient(t, srv).Send(context.Background(), Message{
		To: "creator@example.com", Subject: "hi", HTML: "<p>hi</p>", IdempotencyKey: "payout-1-completed",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id != "msg_123" {
		t.Errorf("id = %q", id)
	}
	if path != "/emails" {
		t.Errorf("path = %q", path)
	}
	if idemKey != "payout-1-completed" {
		t.Errorf("Idempotency-Key = %q", idemKey)
	}
	if got.From != "Dump <payouts@dump.app>" || len(got.To) != 1 || got.To[0] != "creator@example.com" || got.HTML != "<p>hi</p>" {
		t.Errorf("request = %+v", got)
	}
}

func TestSendSurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid from"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Send(context.Background(), Message{To: "a@b.co"})
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Fatalf("err = %v, want provider 422", err)
	}
}

func TestSendRequiresRecipient(t *testing.T) {
	c, _ := New("re_test", "payouts@dump.app")
	if _, err := c.Send(context.Background(), Message{Subject: "x"}); err == nil {
		t.Error("expected error without recipient")
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New("", "payouts@dump.app"); err == nil {
		t.Error("expected error without API key")
	}
}

func TestPayoutCompleted(t *testing.T) {
	m, err := PayoutCompleted(PayoutNotice{
		To:          "c@example.com",
		DisplayName: "Nova",
		AmountCents: 12550,
		Method:      "bank_transfer",
		Destination: "c@example.com",
		Notes:       "Batch <7>",
	})
	if err != nil {
		t.Fatal(err)
	}
	if m.Subject != "Your payout of $125.50 has been processed!" {
		t.Errorf("subject = %q", m.Subject)
	}
	for _, want := range []string{"$125.50", "bank transfer", "c@example.com", "Batch &lt;7&gt;"} {
		if !strings.Contains(m.HTML, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestPayoutFailed(t *testing.T) {
	m, err := PayoutFailed(PayoutNotice{To: "c@example.com", DisplayName: "Nova", AmountCents: 5000, Method: "paypal"})
	if err != nil {
		t.Fatal(err)
	}
	if m.Subject != "Payout request update - Action may be required" {
		t.Errorf("subject = %q", m.Subject)
	}
	if strings.Contains(m.HTML, "Reason:") {
		t.Error("empty notes should not render a reason")
	}
}

func TestFormatUSD(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "$0.00"}, {5, "$0.05"}, {750, "$7.50"}, {5000, "$50.00"}, {-125, "-$1.25"},
	}
	for _, c := range cases {
		if got := FormatUSD(c.cents); got != c.want {
			t.Errorf("FormatUSD(%d) = %q, want %q", c.cents, got, c.want)
		}
	}
}
