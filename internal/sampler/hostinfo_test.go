package sampler

import (
	"strings"
	"testing"
)

func TestParseOSRelease(t *testing.T) {
	cases := []struct {
		name, content, want string
	}{
		{"pretty", "NAME=\"Debian GNU/Linux\"\nVERSION=\"12 (bookworm)\"\nPRETTY_NAME=\"Debian GNU/Linux 12 (bookworm)\"\n", "Debian GNU/Linux 12 (bookworm)"},
		{"name and version", "NAME=Alpine\nVERSION='3.19'\n", "Alpine 3.19"},
		{"name only", "NAME=Arch Linux\n", "Arch Linux"},
		{"empty", "", "Linux"},
		{"garbage", "no equals here\n", "Linux"},
	}
	for _, c := range cases {
		short, full := ParseOSRelease(strings.NewReader(c.content))
		if short != c.want || full != c.want {
			t.Fatalf("%s: got (%q, %q), want %q", c.name, short, full, c.want)
		}
	}
}

func TestRelabelCPU(t *testing.T) {
	const model = "Intel(R) Xeon(R) CPU E5-2680"
	if got := RelabelCPU(model, false, "kvm"); got != model {
		t.Fatalf("bare metal model changed: %q", got)
	}
	if got := RelabelCPU(model, true, "kvm"); got != "Virtual CPU (kvm)" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := RelabelCPU(model, true, ""); got != "Virtual CPU / "+model {
		t.Fatalf("unexpected label %q", got)
	}
}
