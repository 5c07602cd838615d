package dav

import "testing"

func TestParseStatus(t *testing.T) {
	st, err := parseStatus("HTTP/1.1 200 OK")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if st.Proto != "HTTP/1.1" || st.Code != 200 || st.Reason != "OK" {
		t.Errorf("unexpected parse result: %+v", st)
	}
	if !st.Success() {
		t.Error("200 should be a success")
	}
}

func TestParseStatus_EmptyReason(t *testing.T) {
	st, err := parseStatus("HTTP/1.1 404")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if st.Code != 404 || st.Reason != "" {
		t.Errorf("unexpected parse result: %+v", st)
	}
	if st.Success() {
		t.Error("404 should not be a success")
	}
}

func TestParseStatus_MultiWordReason(t *testing.T) {
	st, err := parseStatus("HTTP/1.1 507 Insufficient Storage")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if st.Reason != "Insufficient Storage" {
		t.Errorf("expected full reason phrase, got: %q", st.Reason)
	}
}

func TestParseStatus_SurroundingWhitespace(t *testing.T) {
	st, err := parseStatus("  HTTP/1.1 207 Multi-Status\n")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if st.Code != 207 {
		t.Errorf("expected code 207, got: %d", st.Code)
	}
}

func TestParseStatus_Malformed(t *testing.T) {
	for _, line := range []string{"", "HTTP/1.1", "HTTP/1.1 abc OK"} {
		if _, err := parseStatus(line); err == nil {
			t.Errorf("expected error for %q, got nil", line)
		}
	}
}
