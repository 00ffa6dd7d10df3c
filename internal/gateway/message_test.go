package gateway

import "testing"

func TestServerMessage(t *testing.T) {
	cases := []struct {
		body     string
		wantCode string
		wantMsg  string
	}{
		{body: `{"message":"quota exceeded","code":"quota"}`, wantCode: "quota", wantMsg: "quota exceeded"},
		{body: `{"detail":"Not found."}`, wantMsg: "Not found."},
		{body: `{"error":{"code":"bad_request","message":"invalid payload"}}`, wantCode: "bad_request", wantMsg: "invalid payload"},
		{body: `{"error":"token expired"}`, wantMsg: "token expired"},
		{body: `{"password":["too short"],"email":["invalid"]}`, wantMsg: "email: invalid"},
		{body: `{"non_field_errors":["passwords differ"]}`, wantMsg: "passwords differ"},
		{body: `{"message":""}`},
		{body: `[1,2]`},
		{body: ``},
	}
	for _, tc := range cases {
		code, msg := serverMessage([]byte(tc.body))
		if code != tc.wantCode || msg != tc.wantMsg {
			t.Fatalf("serverMessage(%s) = (%q,%q), want (%q,%q)", tc.body, code, msg, tc.wantCode, tc.wantMsg)
		}
	}
}

func TestErrorUnwrapsToSentinel(t *testing.T) {
	err := &Error{Kind: KindValidation, Status: 422, Message: "bad"}
	if err.Error() != "bad (status 422)" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if KindOf(err) != KindValidation {
		t.Fatalf("KindOf = %q", KindOf(err))
	}
	if KindOf(nil) != "" {
		t.Fatal("KindOf(nil) must be empty")
	}
}
