package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/alfredjeanlab/campusevents/internal/pipeline"
	"github.com/alfredjeanlab/campusevents/internal/ui"
)

const testMessage = "From: Student Activities <activities@example.edu>\r\n" +
	"To: students@example.edu\r\n" +
	"Subject: Poetry Reading Thursday\r\n" +
	"Date: Mon, 14 Oct 2024 09:00:00 -0400\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Join us Thursday Oct 17 at 7pm in Keefe Campus Center for a poetry reading.\r\n"

// llmStub answers every chat completion with the given events.
func llmStub(t *testing.T, events []map[string]string) *httptest.Server {
	t.Helper()
	content, err := json.Marshal(events)
	if err != nil {
		t.Fatal(err)
	}
	body, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": string(content)}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag changed by a previous Execute, since cobra
// keeps flag values between runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestIngestDryRun(t *testing.T) {
	ui.ForceNoColor()
	srv := llmStub(t, []map[string]string{{
		"title":      "Poetry Reading",
		"start_time": "2024-10-17 7:00 PM",
		"location":   "Keefe Campus Center",
	}})

	maildir := t.TempDir()
	for _, name := range []string{"a.eml", "b.eml"} {
		if err := os.WriteFile(filepath.Join(maildir, name), []byte(testMessage), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	auditDir := t.TempDir()

	t.Setenv("CAMPUSEVENTS_LLM_BASE_URL", srv.URL)
	t.Setenv("CAMPUSEVENTS_DATABASE_URL", "")
	t.Setenv("CAMPUSEVENTS_NATS_URL", "")

	out, err := executeCommand(t, "ingest", "--dry-run", "--json",
		"--maildir", maildir, "--audit-dir", auditDir, "--log-level", "error")
	if err != nil {
		t.Fatalf("ingest: %v\n%s", err, out)
	}

	var s pipeline.RunSummary
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	if s.Documents != 2 {
		t.Errorf("documents = %d, want 2", s.Documents)
	}
	if s.Stored != 1 || s.Duplicates != 1 {
		t.Errorf("stored/duplicates = %d/%d, want 1/1", s.Stored, s.Duplicates)
	}
	if s.AuditFile == "" {
		t.Fatal("expected an audit file")
	}
	records, err := pipeline.LoadAudit(s.AuditFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].Title != "Poetry Reading" {
		t.Errorf("audit records = %+v", records)
	}
}

func TestIngestNoSources(t *testing.T) {
	t.Setenv("CAMPUSEVENTS_MAILDIR", "")
	t.Setenv("CAMPUSEVENTS_FEEDS", "")
	t.Setenv("CAMPUSEVENTS_CONFIG", "")
	_, err := executeCommand(t, "ingest", "--dry-run")
	if err == nil {
		t.Fatal("expected error without sources")
	}
}

func TestListRequiresDatabase(t *testing.T) {
	t.Setenv("CAMPUSEVENTS_DATABASE_URL", "")
	_, err := executeCommand(t, "list")
	if err == nil {
		t.Fatal("expected error without a database URL")
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "", "warn", "error"} {
		if _, err := parseLevel(s); err != nil {
			t.Errorf("parseLevel(%q): %v", s, err)
		}
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
