package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer

	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}

	return out.String()
}

// TestSubmitInlineThenQuery 内联提交后用 status、details 与 files ls 查询结果.
func TestSubmitInlineThenQuery(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")

	yaml := fmt.Sprintf(`server:
  reload_config: false
db:
  type: sqlite
  database: %s
  log_level: silent
staging:
  type: local
  dir: %s
mq:
  type: gochannel
ingest:
  spool_dir: %s
`, filepath.Join(dir, "ingest.db"), filepath.Join(dir, "staging"), dir)

	if err := os.WriteFile(cfgFile, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	data := filepath.Join(dir, "products.csv")
	if err := os.WriteFile(data, []byte("UNIQUE_KEY,PRODUCT_TITLE,PRODUCT_DESCRIPTION\nK1,Tee,Cotton\nK2,Cap,Wool\n"), 0o600); err != nil {
		t.Fatalf("write data: %v", err)
	}

	out := execute(t, "--config", cfgFile, "submit", "--inline", data)

	var results []struct {
		Outcome      string `json:"outcome"`
		DetailsOwned int64  `json:"details_owned"`
		Final        struct {
			ID             uint   `json:"id"`
			Status         string `json:"status"`
			SuccessfulRows int64  `json:"successful_rows"`
		} `json:"final"`
	}

	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}

	if len(results) != 1 || results[0].Outcome != "queued" || results[0].Final.Status != "completed" || results[0].Final.SuccessfulRows != 2 {
		t.Fatalf("unexpected submit output %s", out)
	}

	if results[0].DetailsOwned != 2 {
		t.Errorf("details_owned = %d, want 2", results[0].DetailsOwned)
	}

	status := execute(t, "--config", cfgFile, "status", fmt.Sprint(results[0].Final.ID))
	if !strings.Contains(status, `"status": "completed"`) {
		t.Errorf("status output %s", status)
	}

	if details := execute(t, "--config", cfgFile, "details", "K2"); !strings.Contains(details, `"unique_key": "K2"`) {
		t.Errorf("details output %s", details)
	}

	if list := execute(t, "--config", cfgFile, "files", "ls"); !strings.Contains(list, `"total": 1`) {
		t.Errorf("list output %s", list)
	}
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	if err := os.WriteFile(good, []byte("mq:\n  type: gochannel\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if out := execute(t, "config", "validate", good); !strings.Contains(out, "config ok: mq=gochannel") {
		t.Errorf("validate output %q", out)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("mq:\n  type: kafka\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out bytes.Buffer

	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"config", "validate", bad})

	if err := rootCmd.Execute(); err == nil {
		t.Fatalf("expected validation error, output %s", out.String())
	}

	if !strings.Contains(out.String(), `"mq.type"`) {
		t.Errorf("field errors missing from output %s", out.String())
	}
}
