package log_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"github.com/yeisme/ingestvault/pkg/configs"
	nlog "github.com/yeisme/ingestvault/pkg/log"
)

func TestNew_JSONCarriesService(t *testing.T) {
	var buf bytes.Buffer

	l := nlog.New(nlog.Terminal(configs.LogFormatJSON, &buf), "ingestvault", false)
	l.Info().Uint("record_id", 7).Msg("ingest started")

	var line map[string]any
	if err := sonic.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}

	if line["service"] != "ingestvault" || line["message"] != "ingest started" || line["record_id"] != float64(7) {
		t.Errorf("unexpected line %v", line)
	}

	if _, ok := line["caller"]; ok {
		t.Error("caller should only be added in debug mode")
	}
}

func TestTerminal_Console(t *testing.T) {
	var buf bytes.Buffer

	l := nlog.New(nlog.Terminal(configs.LogFormatConsole, &buf), "", true)
	l.Warn().Msg("spool nearly full")

	out := buf.String()
	if strings.HasPrefix(out, "{") || !strings.Contains(out, "spool nearly full") {
		t.Errorf("expected console output, got %q", out)
	}
}

func TestGinWriter(t *testing.T) {
	var buf bytes.Buffer

	l := zerolog.New(&buf)
	w := nlog.NewGinWriter(&l, zerolog.WarnLevel)

	if n, err := w.Write([]byte("[GIN-debug] route registered\n")); err != nil || n != 29 {
		t.Fatalf("write: n=%d err=%v", n, err)
	}

	if !strings.Contains(buf.String(), `"level":"warn"`) || !strings.Contains(buf.String(), `"source":"gin"`) {
		t.Errorf("unexpected output %q", buf.String())
	}

	buf.Reset()

	if _, err := w.Write([]byte("  \n")); err != nil || buf.Len() != 0 {
		t.Errorf("blank line should be dropped, got %q", buf.String())
	}
}
