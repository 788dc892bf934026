// SPDX-License-Identifier: MPL-2.0

package maxima

import "testing"

func TestEngineInfoAbsorbBanner(t *testing.T) {
	t.Parallel()

	banner := []string{
		"Maxima 5.47.0 https://maxima.sourceforge.io",
		"using Lisp SBCL 2.2.9-1.fc38",
		"Distributed under the GNU Public License. See the file COPYING.",
		"Dedicated to the memory of William Schelter.",
		"(%i1)",
	}

	var info EngineInfo
	for _, line := range banner {
		info.absorb(line)
	}

	if info.Version != "5.47.0" {
		t.Errorf("Version = %q, want %q", info.Version, "5.47.0")
	}
	if info.LispVersion != "SBCL 2.2.9-1.fc38" {
		t.Errorf("LispVersion = %q, want %q", info.LispVersion, "SBCL 2.2.9-1.fc38")
	}
}

func TestEngineInfoAbsorbKeepsFirstMatch(t *testing.T) {
	t.Parallel()

	var info EngineInfo
	info.absorb("Maxima 5.47.0")
	info.absorb("Maxima 9.9.9")

	if info.Version != "5.47.0" {
		t.Errorf("Version = %q, want first match kept", info.Version)
	}
}

func TestEngineInfoAbsorbIgnoresNoise(t *testing.T) {
	t.Parallel()

	var info EngineInfo
	for _, line := range []string{"", "(%i1)", "1+1;", "Received: 2"} {
		info.absorb(line)
	}

	if info.Version != "" || info.LispVersion != "" {
		t.Errorf("absorb filled fields from noise: %+v", info)
	}
}
