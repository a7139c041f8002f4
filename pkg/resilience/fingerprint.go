package resilience

import (
	"math/rand/v2"

	"github.com/bogdanfinn/tls-client/profiles"
)

// Fingerprint pairs a TLS impersonation profile with its log-friendly name.
type Fingerprint struct {
	Name    string
	Profile profiles.ClientProfile
}

// fingerprintPool is the set of browser profiles the transport rotates
// through. Repeats across rotations are allowed.
var fingerprintPool = []Fingerprint{
	{Name: "chrome_110", Profile: profiles.Chrome_110},
	{Name: "chrome_116", Profile: profiles.Chrome_116_PSK},
	{Name: "chrome_117", Profile: profiles.Chrome_117},
	{Name: "chrome_120", Profile: profiles.Chrome_120},
	{Name: "chrome_124", Profile: profiles.Chrome_124},
	{Name: "chrome_131", Profile: profiles.Chrome_131},
	{Name: "chrome_133", Profile: profiles.Chrome_133},
	{Name: "firefox_110", Profile: profiles.Firefox_110},
	{Name: "firefox_117", Profile: profiles.Firefox_117},
	{Name: "safari_15_6_1", Profile: profiles.Safari_15_6_1},
	{Name: "safari_16_0", Profile: profiles.Safari_16_0},
	{Name: "safari_ios_16_0", Profile: profiles.Safari_IOS_16_0},
	{Name: "safari_ios_17_0", Profile: profiles.Safari_IOS_17_0},
}

// DefaultFingerprint is used until the first rotation.
var DefaultFingerprint = Fingerprint{Name: "chrome_133", Profile: profiles.Chrome_133}

// RandomFingerprint returns one profile chosen uniformly from the pool.
func RandomFingerprint() Fingerprint {
	return fingerprintPool[rand.IntN(len(fingerprintPool))]
}

// FingerprintByName resolves a configured profile name, falling back to the
// default when the name is unknown or empty.
func FingerprintByName(name string) Fingerprint {
	for _, fp := range fingerprintPool {
		if fp.Name == name {
			return fp
		}
	}
	return DefaultFingerprint
}

// FingerprintNames lists the supported profile names.
func FingerprintNames() []string {
	names := make([]string, len(fingerprintPool))
	for i, fp := range fingerprintPool {
		names[i] = fp.Name
	}
	return names
}
