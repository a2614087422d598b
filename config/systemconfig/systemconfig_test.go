package systemconfig

import (
	"testing"

	config "github.com/ev6sim/alphacore/config/configparser"
)

func TestSetCPUCount(t *testing.T) {
	current = Settings{}
	if err := setCPU([]config.Option{{Name: "count", EqualOpt: "4"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if Current().CPUCount != 4 {
		t.Fatalf("got %+v", Current())
	}
}

func TestSetCPUCountRejectsZero(t *testing.T) {
	current = Settings{}
	if err := setCPU([]config.Option{{Name: "count", EqualOpt: "0"}}); err == nil {
		t.Fatal("expected an error for a zero cpu count")
	}
}

func TestSetMemorySizeSuffixes(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"1024", 1024},
		{"1K", 1024},
		{"1M", 1024 * 1024},
		{"1G", 1024 * 1024 * 1024},
	}
	for _, c := range cases {
		current = Settings{}
		if err := setMemory([]config.Option{{Name: "size", EqualOpt: c.in}}); err != nil {
			t.Fatalf("unexpected error for %q: %v", c.in, err)
		}
		if Current().MemorySize != c.want {
			t.Fatalf("%q: got %d, want %d", c.in, Current().MemorySize, c.want)
		}
	}
}

func TestSetPALImage(t *testing.T) {
	current = Settings{}
	if err := setPAL([]config.Option{{Name: "image", EqualOpt: "/opt/pal.bin"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if Current().PALImage != "/opt/pal.bin" {
		t.Fatalf("got %+v", Current())
	}
}

func TestSetConsoleTelnet(t *testing.T) {
	current = Settings{}
	opts := []config.Option{
		{Name: "telnet"},
		{Name: "port", EqualOpt: "2323"},
	}
	if err := setConsole(opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := Current()
	if got.ConsoleKind != "telnet" || got.ConsolePort != 2323 {
		t.Fatalf("got %+v", got)
	}
}

func TestSetConsoleUnknownOption(t *testing.T) {
	current = Settings{}
	if err := setConsole([]config.Option{{Name: "bogus"}}); err == nil {
		t.Fatal("expected an error for an unknown console option")
	}
}
