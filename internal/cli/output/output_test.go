package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/quicksave-go/internal/core/domain"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON, false).(*JSONFormatter); !ok {
		t.Error("expected JSONFormatter")
	}
	if _, ok := NewFormatter(FormatYAML, false).(*YAMLFormatter); !ok {
		t.Error("expected YAMLFormatter")
	}
	tf, ok := NewFormatter(FormatTable, true).(*TableFormatter)
	if !ok || !tf.Wide {
		t.Error("expected wide TableFormatter")
	}
}

func TestYAMLFormatter(t *testing.T) {
	data := struct {
		Name  string   `yaml:"name"`
		Procs []uint32 `yaml:"procs"`
	}{"t1", []uint32{10, 11}}

	var buf bytes.Buffer
	if err := (&YAMLFormatter{}).Format(&buf, data); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "name: t1\n") || !strings.Contains(out, "- 10\n") || !strings.Contains(out, "- 11\n") {
		t.Errorf("yaml = %q", out)
	}
}

type rows []string

func (r rows) Table(wide bool) *Table {
	tbl := NewTable("name")
	if wide {
		tbl = NewTable("name", "len")
	}
	for _, s := range r {
		if wide {
			tbl.AddRow(s, HumanBytes(int64(len(s))))
		} else {
			tbl.AddRow(s)
		}
	}
	return tbl
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{Wide: true}).Format(&buf, rows{"alpha", ""}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasPrefix(lines[0], "NAME") || !strings.Contains(lines[0], "LEN") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "-") {
		t.Errorf("empty cell should render as '-': %q", lines[2])
	}

	buf.Reset()
	(&TableFormatter{NoHeaders: true}).Format(&buf, rows{"alpha"})
	if strings.TrimSpace(buf.String()) != "alpha" {
		t.Errorf("no-headers output = %q", buf.String())
	}

	buf.Reset()
	(&TableFormatter{}).Format(&buf, map[string]int{"k": 1})
	if !strings.Contains(buf.String(), `"k": 1`) {
		t.Errorf("non-tabular data should fall back to JSON: %q", buf.String())
	}
}

func TestPrinter_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.Verdict(domain.Verdict{Level: domain.VerdictRisk, Message: "gpu"})
	p.Outcome(&domain.Result{Op: domain.OpRestore, Outcome: domain.OutcomeRolledBack, Reason: errors.New("boom")})
	p.Success("saved %s", "x")

	out := buf.String()
	if strings.Contains(out, "\x1b[") {
		t.Errorf("non-terminal output must not be coloured: %q", out)
	}
	for _, want := range []string{"[risk] gpu", "restore rolled_back: boom", "✓ saved x"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

func TestSpinner_NonTerminal(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "dumping")
	s.Start()
	s.Success("done")
	s.Stop()

	if buf.String() != "dumping...\n✓ done\n" {
		t.Errorf("spinner output = %q", buf.String())
	}
}

func TestSpinner_Animated(t *testing.T) {
	var buf syncBuffer
	s := NewSpinner(&buf, "dumping")
	s.animate = true
	s.interval = 5 * time.Millisecond
	s.Start()
	s.Fail("nope")

	out := buf.String()
	if !strings.Contains(out, "⠋ dumping") || !strings.HasSuffix(out, "\r\033[K✗ nope\n") {
		t.Errorf("spinner output = %q", out)
	}
}

func TestProgressBar(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(&buf, "packing")
	bar.Observe(2048)
	if !strings.Contains(buf.String(), "packing 2.0 KiB") {
		t.Errorf("unknown total = %q", buf.String())
	}

	buf.Reset()
	bar.SetTotal(4096)
	bar.Observe(2048)
	if !strings.Contains(buf.String(), " 50%") {
		t.Errorf("half way = %q", buf.String())
	}

	buf.Reset()
	bar.Finish()
	if !strings.Contains(buf.String(), "100%") || !strings.HasSuffix(buf.String(), "\n") {
		t.Errorf("finish = %q", buf.String())
	}
}

func TestHumanBytes(t *testing.T) {
	tests := map[int64]string{
		0:       "0 B",
		1023:    "1023 B",
		1024:    "1.0 KiB",
		1536:    "1.5 KiB",
		1 << 20: "1.0 MiB",
		5 << 30: "5.0 GiB",
	}
	for in, want := range tests {
		if got := HumanBytes(in); got != want {
			t.Errorf("HumanBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
