package resilience

import "testing"

func TestRandomFingerprintFromPool(t *testing.T) {
	names := make(map[string]bool, len(fingerprintPool))
	for _, fp := range fingerprintPool {
		names[fp.Name] = true
	}

	for i := 0; i < 100; i++ {
		fp := RandomFingerprint()
		if !names[fp.Name] {
			t.Fatalf("RandomFingerprint returned %q, not in pool", fp.Name)
		}
	}
}

func TestFingerprintByName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"known profile", "firefox_117", "firefox_117"},
		{"default on unknown", "netscape_4", DefaultFingerprint.Name},
		{"default on empty", "", DefaultFingerprint.Name},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FingerprintByName(tt.input); got.Name != tt.want {
				t.Errorf("FingerprintByName(%q).Name = %q, want %q", tt.input, got.Name, tt.want)
			}
		})
	}
}

func TestFingerprintNamesMatchesPool(t *testing.T) {
	names := FingerprintNames()
	if len(names) != len(fingerprintPool) {
		t.Fatalf("got %d names, want %d", len(names), len(fingerprintPool))
	}
	for i, name := range names {
		if name != fingerprintPool[i].Name {
			t.Errorf("names[%d] = %q, want %q", i, name, fingerprintPool[i].Name)
		}
	}
}
