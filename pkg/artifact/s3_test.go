package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// fakeS3 serves the path-style subset of the S3 API the store uses.
type fakeS3 struct{ objects map[string][]byte }

func respond(status int, body string, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: header}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		prefix := req.URL.Query().Get("prefix")
		var keys []string
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>", k, len(f.objects[k]))
		}
		b.WriteString("</ListBucketResult>")
		return respond(200, b.String(), http.Header{"Content-Type": {"application/xml"}}), nil
	}

	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		f.objects[key] = body
		return respond(200, "", http.Header{"ETag": {`"etag"`}}), nil
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			return respond(404, `<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`,
				http.Header{"Content-Type": {"application/xml"}}), nil
		}
		return respond(200, string(body), http.Header{"Content-Length": {strconv.Itoa(len(body))}}), nil
	}
	return respond(501, "", nil), nil
}

func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	n, err := strconv.ParseInt(strings.SplitN(parts[0], ";", 2)[0], 16, 64)
	if err != nil || n <= 0 || int64(len(parts[1])) != n {
		return nil, false
	}
	return []byte(parts[1]), true
}

func newFakeS3Store(t *testing.T, prefix string) (*S3, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string][]byte{}}
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	if err != nil {
		t.Fatalf("cfg: %v", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.HTTPClient = &http.Client{Transport: fake}
		o.UsePathStyle = true
	})
	return NewS3FromClient(client, "bucket", prefix), fake
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	store, fake := newFakeS3Store(t, "/strainmodel/")

	if err := store.Put(ctx, "run-1/iso_model.json", bytes.NewReader([]byte("{}"))); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, "run-2/iso_model.json", bytes.NewReader([]byte("{\"id\":1}"))); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := fake.objects["strainmodel/run-1/iso_model.json"]; !ok {
		t.Errorf("object not stored under prefix: %v", fake.objects)
	}

	if got := readAll(t, store, "run-2/iso_model.json"); got != `{"id":1}` {
		t.Errorf("get = %q", got)
	}

	objs, err := store.List(ctx, "run-1/")
	if err != nil {
		t.Fatal(err)
	}
	if len(objs) != 1 || objs[0].Key != "run-1/iso_model.json" || objs[0].Size != 2 {
		t.Errorf("list = %+v", objs)
	}
	all, err := store.List(ctx, "")
	if err != nil || len(all) != 2 {
		t.Errorf("list all = %+v, %v", all, err)
	}

	if _, err := store.Get(ctx, "run-3/none"); err == nil {
		t.Error("expected error for missing object")
	}
}
