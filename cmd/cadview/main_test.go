package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/cadview/internal/testutil/testlog"
)

const sample = `D:"data":{"instances":[{"vertices":{"buffer":"0000803f","codec":"hex","dtype":"float32"}}],` +
	`"shapes":{"type":"shapes","name":"root","parts":[{"type":"shapes","shape":{"ref":0}},` +
	`{"type":"edges","shape":{"edges":{"buffer":"00","codec":"hex","dtype":"float64"}}}]}}}`

func writeSample(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.txt")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func TestDecodePrintsSummary(t *testing.T) {
	testlog.Start(t)
	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"decode", writeSample(t, sample)}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, errOut.String())
	}
	for _, want := range []string{"references", "vertices=1", "1 field errors"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in output:\n%s", want, out.String())
		}
	}
}

func TestDecodeEmitWritesTree(t *testing.T) {
	testlog.Start(t)
	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"decode", "--emit", writeSample(t, sample)}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, errOut.String())
	}
	var tree map[string]any
	if err := json.Unmarshal(out.Bytes(), &tree); err != nil {
		t.Fatalf("emit output is not JSON: %v\n%s", err, out.String())
	}
	if tree["name"] != "root" || len(tree["parts"].([]any)) != 2 {
		t.Fatalf("unexpected tree %v", tree)
	}
}

func TestDecodeEnvelopeErrorExitsNonZero(t *testing.T) {
	testlog.Start(t)
	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"decode", writeSample(t, `D:"data": [`)}, &out, &errOut)
	if code != 1 || !strings.Contains(errOut.String(), "envelope") {
		t.Fatalf("expected exit 1 with envelope error, got %d %s", code, errOut.String())
	}
}

func TestUsageErrors(t *testing.T) {
	testlog.Start(t)
	for _, args := range [][]string{{}, {"bogus"}, {"decode"}, {"config"}, {"config", "init"}, {"serve", "extra"}} {
		var out, errOut bytes.Buffer
		if code := run(context.Background(), args, &out, &errOut); code != 2 {
			t.Fatalf("args %v: expected exit 2, got %d", args, code)
		}
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "cadview.yaml")
	var out, errOut bytes.Buffer
	if code := run(context.Background(), []string{"config", "init", "--kind", "yaml", path}, &out, &errOut); code != 0 {
		t.Fatalf("init: exit %d %s", code, errOut.String())
	}
	if code := run(context.Background(), []string{"config", "init", "--kind", "yaml", path}, &out, &errOut); code != 1 {
		t.Fatalf("second init without --force should fail, got %d", code)
	}
	if code := run(context.Background(), []string{"config", "validate", path}, &out, &errOut); code != 0 {
		t.Fatalf("validate: exit %d %s", code, errOut.String())
	}
	if code := run(context.Background(), []string{"decode", "--config", path, writeSample(t, sample)}, &out, &errOut); code != 0 {
		t.Fatalf("decode with config: exit %d %s", code, errOut.String())
	}
}
