package commands

import "testing"

func TestParseSSHTarget(t *testing.T) {
	tests := []struct {
		target   string
		username string
		hostname string
		port     uint
		wantErr  bool
	}{
		{"jdoe@login.example.edu:2222", "jdoe", "login.example.edu", 2222, false},
		{"jdoe@login.example.edu", "jdoe", "login.example.edu", 22, false},
		{"jdoe", "jdoe", "login.rc.colorado.edu", 22, false},
		{"jdoe@login.example.edu:", "jdoe", "login.example.edu", 22, false},
		{"@login.example.edu", "", "", 0, true},
		{"jdoe@host:abc", "", "", 0, true},
		{"a@b@c", "", "", 0, true},
	}

	for _, tt := range tests {
		username, hostname, port, err := parseSSHTarget(tt.target)

		if tt.wantErr {
			if err == nil {
				t.Errorf("parseSSHTarget(%q): expected error, got none", tt.target)
			}
			continue
		}

		if err != nil {
			t.Errorf("parseSSHTarget(%q): unexpected error: %v", tt.target, err)
			continue
		}

		if username != tt.username || hostname != tt.hostname || port != tt.port {
			t.Errorf("parseSSHTarget(%q) = (%q, %q, %d), want (%q, %q, %d)",
				tt.target, username, hostname, port, tt.username, tt.hostname, tt.port)
		}
	}
}
