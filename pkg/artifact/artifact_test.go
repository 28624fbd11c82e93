package artifact

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/yumyai/strainmodel/logger"
)

func readAll(t *testing.T, s Store, key string) string {
	t.Helper()
	rc, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestFSStore(t *testing.T) {
	ctx := context.Background()
	s := NewFS(filepath.Join(t.TempDir(), "mirror"))

	if objs, err := s.List(ctx, ""); err != nil || len(objs) != 0 {
		t.Fatalf("empty store list = %v, %v", objs, err)
	}
	for key, body := range map[string]string{"run1/a.txt": "A", "run1/b.txt": "BB", "run2/a.txt": "C"} {
		if err := s.Put(ctx, key, bytes.NewBufferString(body)); err != nil {
			t.Fatal(err)
		}
	}
	if got := readAll(t, s, "run1/b.txt"); got != "BB" {
		t.Errorf("get = %q", got)
	}

	objs, err := s.List(ctx, "run1/")
	if err != nil {
		t.Fatal(err)
	}
	var keys []string
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	if !reflect.DeepEqual(keys, []string{"run1/a.txt", "run1/b.txt"}) || objs[1].Size != 2 {
		t.Errorf("list = %+v", objs)
	}

	if _, err := s.Get(ctx, "run3/x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	for _, bad := range []string{"../escape", "/abs", ""} {
		if err := s.Put(ctx, bad, bytes.NewBufferString("x")); err == nil {
			t.Errorf("key %q accepted", bad)
		}
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, "file://"+dir, S3Options{})
	if err != nil {
		t.Fatal(err)
	}
	if fsStore, ok := s.(*FS); !ok || fsStore.Root != dir {
		t.Errorf("store = %#v", s)
	}

	t.Setenv("AWS_ACCESS_KEY_ID", "AKIA")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "SECRET")
	s, err = Open(ctx, "s3://bucket/runs/", S3Options{Endpoint: "http://localhost:9000", PathStyle: true})
	if err != nil {
		t.Fatal(err)
	}
	if s3Store, ok := s.(*S3); !ok || s3Store.bucket != "bucket" || s3Store.prefix != "runs" {
		t.Errorf("store = %#v", s)
	}

	for _, bad := range []string{"ftp://host/x", "s3:///nobucket", "file://"} {
		if _, err := Open(ctx, bad, S3Options{}); err == nil {
			t.Errorf("%q accepted", bad)
		}
	}
}

func TestMirror(t *testing.T) {
	logger.InitNop()
	ctx := context.Background()
	src := t.TempDir()
	var paths []string
	for _, name := range []string{"iso_model.json", "iso_gene_dictionary.csv"} {
		p := filepath.Join(src, name)
		if err := os.WriteFile(p, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}

	s := NewFS(t.TempDir())
	keys, err := Mirror(ctx, s, "run-1", paths...)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(keys, []string{"run-1/iso_model.json", "run-1/iso_gene_dictionary.csv"}) {
		t.Errorf("keys = %v", keys)
	}
	if got := readAll(t, s, "run-1/iso_model.json"); got != "iso_model.json" {
		t.Errorf("mirrored content = %q", got)
	}

	if _, err := Mirror(ctx, s, "run-1", filepath.Join(src, "missing")); err == nil {
		t.Error("missing file should fail")
	}
}
